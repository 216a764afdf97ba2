// Package testutil provides test helpers shared across nuam packages: a
// migrated in-memory database seeded with users, and generators for upload
// fixtures.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/Veraticus/nuam/internal/model"
	"github.com/Veraticus/nuam/internal/service"
	"github.com/Veraticus/nuam/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLStorage
	t       *testing.T
	users   map[string]*model.User
}

// Standard users seeded by SetupTestDB, one per role plus a superuser.
var standardUsers = []model.User{
	{Username: "broker", DisplayName: "Bruno Broker", Role: model.RoleBroker},
	{Username: "analyst", DisplayName: "Ana Analyst", Role: model.RoleAnalyst},
	{Username: "admin", DisplayName: "Ada Admin", Role: model.RoleAdministrator},
	{Username: "auditor", DisplayName: "Aldo Auditor", Role: model.RoleAuditor},
	{Username: "manager", DisplayName: "Mara Manager", Role: model.RoleManager},
	{Username: "norole", DisplayName: "No Role"},
	{Username: "root", DisplayName: "Root", IsSuperuser: true},
}

// SetupTestDB creates a new in-memory test database, runs migrations and
// seeds the standard users. It automatically handles cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	broker := db.User("broker")
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	db := &TestDB{Storage: store, t: t, users: make(map[string]*model.User)}
	for _, u := range standardUsers {
		u := u
		if err := store.CreateUser(ctx, &u); err != nil {
			t.Fatalf("failed to seed user %q: %v", u.Username, err)
		}
		db.users[u.Username] = &u
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return db
}

// User returns a seeded user by username or fails the test.
func (db *TestDB) User(username string) *model.User {
	db.t.Helper()
	u, ok := db.users[username]
	if !ok {
		db.t.Fatalf("no seeded user %q", username)
	}
	return u
}

// WithTransaction executes the given function within a database transaction.
// The transaction is automatically rolled back after the function completes.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	ctx := context.Background()
	tx, err := db.Storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}
