package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cms "github.com/loomcms/loom"
)

func TestURLSignerRoundTrip(t *testing.T) {
	t.Parallel()
	signer := NewURLSigner([]byte("shared-secret"))

	token, err := signer.Sign("uploads/photo.jpg", time.Hour)
	require.NoError(t, err)

	key, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "uploads/photo.jpg", key)
}

func TestURLSignerRejectsExpiredToken(t *testing.T) {
	t.Parallel()
	signer := NewURLSigner([]byte("shared-secret"))

	token, err := signer.Sign("uploads/photo.jpg", -time.Minute)
	require.NoError(t, err)

	_, err = signer.Verify(token)
	require.Error(t, err)
	assert.Equal(t, cms.KindUnauthorized, cms.KindOf(err))
}

func TestURLSignerRejectsTamperedSignature(t *testing.T) {
	t.Parallel()
	signerA := NewURLSigner([]byte("secret-a"))
	signerB := NewURLSigner([]byte("secret-b"))

	token, err := signerA.Sign("uploads/photo.jpg", time.Hour)
	require.NoError(t, err)

	_, err = signerB.Verify(token)
	require.Error(t, err)
	assert.Equal(t, cms.KindUnauthorized, cms.KindOf(err))
}

func TestURLSignerRejectsMalformedToken(t *testing.T) {
	t.Parallel()
	signer := NewURLSigner([]byte("shared-secret"))

	_, err := signer.Verify("not-valid-base64!!")
	require.Error(t, err)
	assert.Equal(t, cms.KindUnauthorized, cms.KindOf(err))
}
