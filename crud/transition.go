package crud

import (
	"fmt"

	cms "github.com/loomcms/loom"
	"github.com/loomcms/loom/collection"
)

// TransitionStage moves a workflow-enabled record from its current stage
// to toStage, subject to the collection's declared transitions and the
// transition access rule (spec section 4.2.6; transition falls back to
// the update access rule when none is declared).
func (e *Engine) TransitionStage(ac *cms.AppContext, collectionName, id, toStage string) (cms.Record, error) {
	compiled, err := e.resolve(collectionName)
	if err != nil {
		return nil, err
	}
	c := compiled.Collection
	wf := c.Options().Workflow
	if wf == nil {
		return nil, cms.InvalidFieldConfig(fmt.Sprintf("collection %q has no workflow", c.Name()))
	}
	if !wf.HasStage(toStage) {
		return nil, cms.IllegalTransition("?", toStage)
	}

	existing, err := e.FindOne(ac, collectionName, id)
	if err != nil {
		return nil, err
	}
	fromStage, _ := existing["stage"].(string)

	if err := checkAccess(ac, c, "transition", existing); err != nil {
		return nil, err
	}
	if !wf.AllowedFrom(fromStage, toStage) {
		return nil, cms.IllegalTransition(fromStage, toStage)
	}

	if err := runTransitionHooks(c.HookSet().BeforeTransition, ac, fromStage, toStage); err != nil {
		return nil, err
	}

	var result cms.Record
	err = cms.WithTransaction(ac, e.DB, e.Logger, func(ac *cms.AppContext) error {
		if err := e.updateMainRow(ac, compiled, id, map[string]any{"stage": toStage}); err != nil {
			return err
		}
		result = cms.Record(existing).Clone()
		result["stage"] = toStage
		for _, h := range c.HookSet().AfterTransition {
			if err := h(ac, fromStage, toStage); err != nil {
				return err
			}
		}
		return e.appendLog(ac, c, "transition", id, map[string]any{"from": fromStage, "to": toStage})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func runTransitionHooks(hooks []collection.TransitionHookFunc, ac *cms.AppContext, from, to string) error {
	for _, h := range hooks {
		if err := h(ac, from, to); err != nil {
			return err
		}
	}
	return nil
}
