package boltdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/iudanet/leadsauth/internal/client/storage"
)

func createTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNew_Success(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "testdb.db")

	store, err := New(context.Background(), dbPath)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, store.Close())
	}()

	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	err = store.db.View(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketCookies, bucketProfile} {
			if tx.Bucket(b) == nil {
				return os.ErrNotExist
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestNew_InvalidPath(t *testing.T) {
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "missing", "client.db"))
	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestClose(t *testing.T) {
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "testdb.db"))
	require.NoError(t, err)

	assert.NoError(t, store.Close())
	assert.Nil(t, store.db)

	// Повторный Close ничего не делает
	assert.NoError(t, store.Close())

	_, err = store.ListCookies(context.Background())
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	assert.ErrorIs(t, store.SaveProfile(context.Background(), &storage.Profile{}), storage.ErrStorageClosed)
}

func TestStorage_Cookies(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	access := &storage.CookieRecord{
		Origin:   "http://localhost:8080",
		Name:     "accessToken",
		Value:    "a1",
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: 2,
	}
	refresh := &storage.CookieRecord{Origin: "http://localhost:8080", Name: "refreshToken", Value: "r1", Path: "/"}

	cookies, err := store.ListCookies(ctx)
	require.NoError(t, err)
	assert.Empty(t, cookies)

	require.NoError(t, store.SaveCookie(ctx, access))
	require.NoError(t, store.SaveCookie(ctx, refresh))

	// Замена по ключу
	rotated := *refresh
	rotated.Value = "r2"
	require.NoError(t, store.SaveCookie(ctx, &rotated))

	cookies, err = store.ListCookies(ctx)
	require.NoError(t, err)
	require.Len(t, cookies, 2)

	byName := map[string]*storage.CookieRecord{}
	for _, c := range cookies {
		byName[c.Name] = c
	}
	assert.Equal(t, "r2", byName["refreshToken"].Value)
	assert.True(t, byName["accessToken"].Expires.Equal(expires))
	assert.True(t, byName["accessToken"].HttpOnly)
	assert.Equal(t, 2, byName["accessToken"].SameSite)

	require.NoError(t, store.DeleteCookie(ctx, access.Key()))
	// Удаление отсутствующей записи не ошибка
	require.NoError(t, store.DeleteCookie(ctx, access.Key()))

	cookies, err = store.ListCookies(ctx)
	require.NoError(t, err)
	require.Len(t, cookies, 1)

	require.NoError(t, store.ClearCookies(ctx))
	cookies, err = store.ListCookies(ctx)
	require.NoError(t, err)
	assert.Empty(t, cookies)
}

func TestStorage_Profile(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	_, err := store.GetProfile(ctx)
	assert.ErrorIs(t, err, storage.ErrProfileNotFound)

	p := &storage.Profile{
		Server:      "http://localhost:8080",
		UserID:      "user-1",
		Email:       "alice@example.com",
		IsAdmin:     true,
		ConfirmedAt: time.Now().Unix(),
	}
	require.NoError(t, store.SaveProfile(ctx, p))

	got, err := store.GetProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	require.NoError(t, store.DeleteProfile(ctx))
	_, err = store.GetProfile(ctx)
	assert.ErrorIs(t, err, storage.ErrProfileNotFound)
}

func TestStorage_Persistence(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "client.db")

	store, err := New(ctx, dbPath)
	require.NoError(t, err)
	require.NoError(t, store.SaveCookie(ctx, &storage.CookieRecord{Origin: "http://h", Name: "n", Value: "v"}))
	require.NoError(t, store.Close())

	store, err = New(ctx, dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	cookies, err := store.ListCookies(ctx)
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, "v", cookies[0].Value)
}

func TestCookieRecord_Expired(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{name: "session cookie", want: false},
		{name: "future", expires: now.Add(time.Minute), want: false},
		{name: "past", expires: now.Add(-time.Minute), want: true},
		{name: "exact", expires: now, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &storage.CookieRecord{Expires: tt.expires}
			assert.Equal(t, tt.want, c.Expired(now))
		})
	}
}
