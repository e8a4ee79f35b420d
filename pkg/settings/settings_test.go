package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func openTestDB(t *testing.T) *bolt.DB {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "test.db"), 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewStoreSeedsDefaults(t *testing.T) {
	store, err := NewStore(openTestDB(t))
	require.NoError(t, err)

	cfg, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "indi:7624", cfg.ServerAddr)
	assert.Equal(t, "CCD Simulator", cfg.Telescope.PrimaryCamera)
}

func TestSetAndGet(t *testing.T) {
	store, err := NewStore(openTestDB(t))
	require.NoError(t, err)

	cfg := Settings{
		ServerAddr: "observatory:7624",
		Telescope: Telescope{
			Mount:         "EQMod Mount",
			PrimaryCamera: "ZWO CCD ASI1600MM",
		},
	}
	require.NoError(t, store.Set(cfg))

	got, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestSetRejectsEmptyServer(t *testing.T) {
	store, err := NewStore(openTestDB(t))
	require.NoError(t, err)

	assert.Error(t, store.Set(Settings{}))
}

func TestDefaultsDoNotOverwrite(t *testing.T) {
	db := openTestDB(t)

	store, err := NewStore(db)
	require.NoError(t, err)
	custom := Default()
	custom.ServerAddr = "observatory:7624"
	require.NoError(t, store.Set(custom))

	// Reopening the store keeps the stored settings.
	again, err := NewStore(db)
	require.NoError(t, err)
	cfg, err := again.Get()
	require.NoError(t, err)
	assert.Equal(t, "observatory:7624", cfg.ServerAddr)
}
