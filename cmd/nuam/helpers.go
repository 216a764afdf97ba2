package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Veraticus/nuam/internal/common"
	"github.com/Veraticus/nuam/internal/config"
	"github.com/Veraticus/nuam/internal/model"
	"github.com/Veraticus/nuam/internal/storage"
)

// initStorage opens the configured database and brings its schema up to
// date.
func initStorage(ctx context.Context) (*storage.SQLStorage, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	store, err := storage.Open(cfg.Database.Driver, cfg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, cfg, nil
}

// currentUser resolves the --user flag (or NUAM_USER) to a stored user.
func currentUser(ctx context.Context, store *storage.SQLStorage) (*model.User, error) {
	username := strings.TrimSpace(viper.GetString("user"))
	if username == "" {
		return nil, common.NewUserError("--user is required for this command", common.ErrUnauthenticated)
	}

	user, err := store.GetUserByUsername(ctx, username)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NewUserError(fmt.Sprintf("unknown user %q", username), common.ErrUnauthenticated)
	}
	return user, err
}

// requireRoles fails unless user is a superuser or holds one of roles.
func requireRoles(user *model.User, roles ...model.Role) error {
	if user.HasAnyRole(roles...) {
		return nil
	}
	return common.NewUserError(fmt.Sprintf("user %q may not run this command", user.Username), common.ErrForbidden)
}
