// Package bootstrap opens the database and builds the shared record stores
// for the server and the admin CLI.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	sqliteadapter "github.com/ericfisherdev/cookiesync/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/cookiesync/internal/application"
	"github.com/ericfisherdev/cookiesync/internal/config"
)

// Stack is an opened database plus the registry built over it.
type Stack struct {
	DB       *sqliteadapter.DB
	Registry *application.Registry
	Sealed   bool
}

// Open opens the database, applies migrations, loads every record store and
// normalizes the stored storage key. The caller must Close the stack.
//
// A sealed token stored without a secret key configured does not fail Open;
// Registry.CredentialsErr reports it and the credential store refuses writes.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stack, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	version, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("migrations complete", "version", version)

	credentials := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	registry := application.NewRegistry(
		credentials,
		sqliteadapter.NewSettingsRepo(db),
		sqliteadapter.NewDomainConfigRepo(db),
		logger,
	)

	if err := registry.Init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := registry.Keys.Reconcile(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("reconcile storage key: %w", err)
	}

	return &Stack{
		DB:       db,
		Registry: registry,
		Sealed:   credentials.Sealed(),
	}, nil
}

// Close closes the database.
func (s *Stack) Close() error {
	return s.DB.Close()
}
