package cms

import (
	"context"
	"sync"
)

// Session describes the resolved caller identity an adapter attaches to an
// AppContext after authenticating a request (see the abstract Auth
// collaborator).
type Session struct {
	UserID string
	Roles  []string
	Claims map[string]any
}

// HasRole reports whether the session carries the given role.
func (s *Session) HasRole(role string) bool {
	if s == nil {
		return false
	}
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AppContext is resolved once per request/RPC by an adapter (see section 2,
// "Control flow") and threaded explicitly through every CRUD/operation call.
// It plays the role AsyncLocalStorage plays in the source system: the
// ambient transaction and afterCommit queue live on it (in a *txState that
// nested WithTransaction calls reuse), rather than in a goroutine-local slot, because
// Go has no equivalent of per-task storage that survives across awaited
// calls without being threaded explicitly.
type AppContext struct {
	Context        context.Context
	Session        *Session
	Locale         string
	LocaleFallback bool
	DefaultLocale  string
	RequestID      string

	// IncludeDeleted, when true, allows reads to see soft-deleted rows.
	IncludeDeleted bool

	tx *txState
}

// txState is the ambient transaction slot. A fresh *txState is created by
// the outermost WithTransaction call; nested calls observe a non-nil tx and
// reuse it instead of opening a new one.
type txState struct {
	mu          sync.Mutex
	handle      Tx
	afterCommit []func(context.Context)
	outermost   bool
}

// NewAppContext builds an AppContext for a fresh request.
func NewAppContext(ctx context.Context) *AppContext {
	return &AppContext{Context: ctx, Locale: "en", DefaultLocale: "en"}
}

// WithLocale returns a shallow copy of ac with the given locale/fallback,
// sharing the same ambient transaction slot (locale is a read-time concern,
// not a transactional one).
func (ac *AppContext) WithLocale(locale string, fallback bool) *AppContext {
	cp := *ac
	cp.Locale = locale
	cp.LocaleFallback = fallback
	return &cp
}

// EffectiveLocale resolves the locale to use for a call: ac.Locale if set,
// otherwise ac.DefaultLocale.
func (ac *AppContext) EffectiveLocale() string {
	if ac.Locale != "" {
		return ac.Locale
	}
	if ac.DefaultLocale != "" {
		return ac.DefaultLocale
	}
	return "en"
}

// SessionRoles satisfies access.RuntimeContext.
func (ac *AppContext) SessionRoles() []string {
	if ac.Session == nil {
		return nil
	}
	return ac.Session.Roles
}

// SessionUserID satisfies access.RuntimeContext.
func (ac *AppContext) SessionUserID() string {
	if ac.Session == nil {
		return ""
	}
	return ac.Session.UserID
}

// IsAuthenticated satisfies access.RuntimeContext.
func (ac *AppContext) IsAuthenticated() bool {
	return ac.Session != nil && ac.Session.UserID != ""
}

// inTransaction reports whether ac already has an ambient transaction bound.
func (ac *AppContext) inTransaction() bool {
	return ac.tx != nil && ac.tx.handle != nil
}

// WithTransaction reuses the ambient transaction bound to ac if one exists,
// otherwise opens a new one against db, runs fn, and commits/rolls back.
// On the outermost commit, queued onAfterCommit callbacks run sequentially;
// their errors are logged by the caller-supplied logger and never
// propagated (spec section 4.5/7).
func WithTransaction(ac *AppContext, db DB, logger Logger, fn func(ac *AppContext) error) (err error) {
	if ac.inTransaction() {
		// Nested: reuse the ambient transaction, do not commit/rollback here.
		return fn(ac)
	}

	ctx := ac.Context
	if ctx == nil {
		ctx = context.Background()
	}
	tx, err := db.Begin(ctx)
	if err != nil {
		return Wrap(KindInternal, err)
	}

	state := &txState{handle: tx, outermost: true}
	nested := *ac
	nested.tx = state

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	if err = fn(&nested); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && logger != nil {
			logger.Error("transaction rollback failed", map[string]any{"error": rbErr.Error()})
		}
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return Wrap(KindInternal, err)
	}

	runAfterCommit(ctx, state, logger)
	return nil
}

// runAfterCommit executes queued callbacks sequentially, logging but never
// propagating their errors (spec invariant 9, "hook idempotence of commit
// callbacks": each callback runs exactly once per successful outermost
// commit).
func runAfterCommit(ctx context.Context, state *txState, logger Logger) {
	state.mu.Lock()
	callbacks := state.afterCommit
	state.afterCommit = nil
	state.mu.Unlock()

	for _, cb := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil && logger != nil {
					logger.Error("onAfterCommit callback panicked", map[string]any{"panic": r})
				}
			}()
			cb(ctx)
		}()
	}
}

// OnAfterCommit enqueues fn to run once the outermost transaction bound to
// ac commits. If ac carries no ambient transaction, fn runs fire-and-forget
// in a new goroutine, matching the source's "no transaction -> fire and
// forget" fallback.
func OnAfterCommit(ac *AppContext, fn func(ctx context.Context)) {
	if ac.tx == nil {
		go fn(ac.Context)
		return
	}
	ac.tx.mu.Lock()
	ac.tx.afterCommit = append(ac.tx.afterCommit, fn)
	ac.tx.mu.Unlock()
}

// TxHandle returns the query handle in effect for ac: the ambient
// transaction if one is bound, or fallback otherwise. CRUD code should
// always route through this rather than holding its own db reference.
// Typed as Queryer (not DB) since Tx does not expose Begin/Dialect.
func TxHandle(ac *AppContext, fallback DB) Queryer {
	if ac.inTransaction() {
		return ac.tx.handle
	}
	return fallback
}
