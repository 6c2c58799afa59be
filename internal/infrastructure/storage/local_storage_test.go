package storage

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mediaapp "github.com/backoffice/saas/internal/application/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSecret = "test-signing-secret-0123456789"

func newLocal(t *testing.T) *LocalObjectStorage {
	t.Helper()
	signer, err := NewURLSigner(testSecret, "http://api.test/api/v1/")
	require.NoError(t, err)
	s, err := NewLocalObjectStorage(t.TempDir(), signer, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func TestLocalObjectStorage_PutGetDelete(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()
	key := "tenants/t1/media/default/m1/hello.txt"

	require.NoError(t, s.Put(ctx, key, strings.NewReader("hello world"), 11, "text/plain"))

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, info, err := s.Get(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
	assert.Equal(t, int64(11), info.Size)
	assert.True(t, strings.HasPrefix(info.ContentType, "text/plain"))

	require.NoError(t, s.Delete(ctx, key))
	ok, err = s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	// deleting again is fine and the empty directories are gone
	require.NoError(t, s.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(s.root, "tenants"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalObjectStorage_GetMissing(t *testing.T) {
	s := newLocal(t)
	_, _, err := s.Get(context.Background(), "tenants/t1/none.bin")
	assert.ErrorIs(t, err, mediaapp.ErrObjectNotFound)
}

func TestLocalObjectStorage_SizeMismatchLeavesNothing(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()
	key := "tenants/t1/short.bin"

	err := s.Put(ctx, key, strings.NewReader("abc"), 10, "application/octet-stream")
	require.Error(t, err)
	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := os.ReadDir(filepath.Join(s.root, "tenants", "t1"))
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file must be removed")
}

func TestLocalObjectStorage_RejectsEscapingKeys(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()
	for _, key := range []string{"../outside", "/abs/path", `tenants\..\x`, ""} {
		assert.Error(t, s.Put(ctx, key, strings.NewReader("x"), 1, "text/plain"), key)
	}
}

func TestLocalObjectStorage_URLValidatesWithSigner(t *testing.T) {
	s := newLocal(t)
	key := "tenants/t1/media/default/m1/my photo.png"

	raw, expiresAt, err := s.URL(context.Background(), key, time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expiresAt, 5*time.Second)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/media/files/tenants/t1/media/default/m1/my photo.png", u.Path)

	token := u.Query().Get("token")
	require.NotEmpty(t, token)
	assert.NoError(t, s.Signer().Verify(token, key))
	assert.ErrorIs(t, s.Signer().Verify(token, "tenants/t2/other.png"), ErrKeyMismatch)
}

func TestURLSigner(t *testing.T) {
	t.Run("short secret is rejected", func(t *testing.T) {
		_, err := NewURLSigner("short", "http://x")
		require.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		signer, err := NewURLSigner(testSecret, "http://x")
		require.NoError(t, err)
		past := time.Now().Add(-time.Hour)
		signer.now = func() time.Time { return past }
		raw, _, err := signer.Sign("k/a.png", time.Minute)
		require.NoError(t, err)

		signer.now = time.Now
		u, _ := url.Parse(raw)
		assert.ErrorIs(t, signer.Verify(u.Query().Get("token"), "k/a.png"), ErrExpiredToken)
	})

	t.Run("token from another secret", func(t *testing.T) {
		a, _ := NewURLSigner(testSecret, "http://x")
		b, _ := NewURLSigner("another-secret-9876543210", "http://x")
		raw, _, err := a.Sign("k/a.png", time.Minute)
		require.NoError(t, err)
		u, _ := url.Parse(raw)
		assert.ErrorIs(t, b.Verify(u.Query().Get("token"), "k/a.png"), ErrInvalidToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		signer, _ := NewURLSigner(testSecret, "http://x")
		assert.ErrorIs(t, signer.Verify("not-a-jwt", "k"), ErrInvalidToken)
	})
}

func TestMemoryObjectStorage(t *testing.T) {
	s := NewMemoryObjectStorage()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "a/b.txt", strings.NewReader("hi"), 2, "text/plain"))
	assert.Equal(t, []string{"a/b.txt"}, s.Keys())

	rc, info, err := s.Get(ctx, "a/b.txt")
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "text/plain", info.ContentType)

	require.NoError(t, s.Delete(ctx, "a/b.txt"))
	_, _, err = s.Get(ctx, "a/b.txt")
	assert.ErrorIs(t, err, mediaapp.ErrObjectNotFound)
}
