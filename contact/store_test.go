package contact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chanderlud/audio-chat/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONStoreFormat(t *testing.T) {
	dir := t.TempDir()
	store, err := NewJSONStore(dir)
	require.NoError(t, err)

	rec := Record{IP: "192.0.2.1", Port: 45000, Secret: testSecret, Nickname: "alice"}
	require.NoError(t, store.Save(rec))

	data, err := os.ReadFile(filepath.Join(dir, "alice.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ip":"192.0.2.1","port":45000,"secret":"0123456789abcdef","nickname":"alice"}`, string(data))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o600))
	records, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []Record{rec}, records)

	require.NoError(t, store.Delete("alice"))
	assert.ErrorIs(t, store.Delete("alice"), ErrNotFound)
	assert.ErrorIs(t, store.Save(Record{Nickname: "a/b"}), ErrInvalidNickname)
}

func TestSQLiteStorePlain(t *testing.T) {
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "contacts.db"), nil)
	require.NoError(t, err)
	defer store.Close()

	rec := Record{IP: "192.0.2.1", Port: 45000, Secret: testSecret, Nickname: "alice"}
	require.NoError(t, store.Save(rec))

	rec.Port = 46000
	require.NoError(t, store.Save(rec))

	records, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []Record{rec}, records)

	require.NoError(t, store.Delete("alice"))
	assert.ErrorIs(t, store.Delete("alice"), ErrNotFound)
}

func TestSQLiteStoreSealsSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.db")
	store, err := OpenSQLiteStore(path, []byte("correct horse"))
	require.NoError(t, err)

	rec := Record{IP: "192.0.2.1", Port: 45000, Secret: testSecret, Nickname: "alice"}
	require.NoError(t, store.Save(rec))

	var raw []byte
	require.NoError(t, store.db.QueryRow(`SELECT secret FROM contacts`).Scan(&raw))
	assert.NotContains(t, string(raw), testSecret)
	require.NoError(t, store.Close())

	reopened, err := OpenSQLiteStore(path, []byte("correct horse"))
	require.NoError(t, err)
	records, err := reopened.Load()
	require.NoError(t, err)
	assert.Equal(t, []Record{rec}, records)
	require.NoError(t, reopened.Close())

	wrong, err := OpenSQLiteStore(path, []byte("wrong"))
	require.NoError(t, err)
	defer wrong.Close()
	_, err = wrong.Load()
	assert.ErrorIs(t, err, crypto.ErrAuthentication)

	noPass, err := OpenSQLiteStore(path, nil)
	require.NoError(t, err)
	defer noPass.Close()
	_, err = noPass.Load()
	assert.Error(t, err)
}
