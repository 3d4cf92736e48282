package services

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"testing"

	"github.com/dmitrijs2005/finvault/internal/logging"
	"github.com/dmitrijs2005/finvault/internal/repositories/repomanager"
	"github.com/dmitrijs2005/finvault/internal/session"
	"github.com/dmitrijs2005/finvault/internal/testutil"
	"github.com/stretchr/testify/require"
)

const testIterations = 1000

type fixture struct {
	db      *sql.DB
	rm      repomanager.RepositoryManager
	store   *session.MemoryStore
	logs    *bytes.Buffer
	users   *UserService
	keys    *KeyService
	deks    *DEKService
	sharing *SharingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := session.NewMemoryStore()
	return newFixtureWithStore(t, store, store)
}

// newFixtureWithStore wires the services to sessions, which may wrap store.
func newFixtureWithStore(t *testing.T, store *session.MemoryStore, sessions session.Store) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	rm := repomanager.NewSQLiteRepositoryManager()
	t.Cleanup(store.Close)

	logs := &bytes.Buffer{}
	opts := []Option{
		WithKDFIterations(testIterations),
		WithLogger(logging.NewJSON(logs, slog.LevelDebug)),
		WithUserLocks(NewUserLocks()),
	}

	deks := NewDEKService(db, rm, sessions, opts...)
	return &fixture{
		db:      db,
		rm:      rm,
		store:   store,
		logs:    logs,
		users:   NewUserService(db, rm),
		keys:    NewKeyService(db, rm, sessions, opts...),
		deks:    deks,
		sharing: NewSharingService(db, rm, deks, opts...),
	}
}

func password(name string) []byte { return []byte("pw-" + name) }

// user creates a household member without keys.
func (f *fixture) user(t *testing.T, name string) string {
	t.Helper()
	u, err := f.users.Create(context.Background(), name, "", false)
	require.NoError(t, err)
	return u.ID
}

// enabled creates a member with keys who is left unlocked.
func (f *fixture) enabled(t *testing.T, name string) string {
	t.Helper()
	id := f.user(t, name)
	require.NoError(t, f.keys.EnableEncryption(context.Background(), id, password(name)))
	return id
}
