package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"time"

	cms "github.com/loomcms/loom"
)

// signedEnvelope is the wire shape of a signed storage URL (spec 6.3):
// a URL-safe base64 encoding of {key, expires, sig} where
// sig = HMAC-SHA256(secret, JSON({key, expires})).
type signedEnvelope struct {
	Key     string `json:"key"`
	Expires int64  `json:"expires"`
	Sig     string `json:"sig"`
}

type signaturePayload struct {
	Key     string `json:"key"`
	Expires int64  `json:"expires"`
}

// URLSigner issues and verifies signed storage URLs.
type URLSigner struct {
	Secret []byte
}

// NewURLSigner builds a signer from a shared secret.
func NewURLSigner(secret []byte) *URLSigner {
	return &URLSigner{Secret: secret}
}

// Sign produces a signed, URL-safe token for key valid for ttl.
func (s *URLSigner) Sign(key string, ttl time.Duration) (string, error) {
	expires := time.Now().Add(ttl).Unix()
	sig, err := s.signature(key, expires)
	if err != nil {
		return "", err
	}
	env := signedEnvelope{Key: key, Expires: expires, Sig: sig}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", cms.Wrap(cms.KindInternal, err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// Verify decodes token and checks its signature and expiry, returning the
// signed key on success. Fails closed (spec 6.3: "fails closed on expiry or
// signature mismatch").
func (s *URLSigner) Verify(token string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", cms.Unauthorized("malformed signed url")
	}
	var env signedEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", cms.Unauthorized("malformed signed url")
	}
	if time.Now().Unix() > env.Expires {
		return "", cms.Unauthorized("signed url expired")
	}
	expected, err := s.signature(env.Key, env.Expires)
	if err != nil {
		return "", err
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(env.Sig)) != 1 {
		return "", cms.Unauthorized("signed url signature mismatch")
	}
	return env.Key, nil
}

func (s *URLSigner) signature(key string, expires int64) (string, error) {
	payload, err := json.Marshal(signaturePayload{Key: key, Expires: expires})
	if err != nil {
		return "", cms.Wrap(cms.KindInternal, err)
	}
	mac := hmac.New(sha256.New, s.Secret)
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
