package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/cookiesync/internal/domain/model"
	"github.com/ericfisherdev/cookiesync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SettingsStore = (*SettingsRepo)(nil)

// SettingsRepo is the SQLite implementation of the SettingsStore port.
type SettingsRepo struct {
	db *DB
}

// NewSettingsRepo creates a new SettingsRepo backed by the given DB.
func NewSettingsRepo(db *DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

// Load returns the stored settings and their revision. The storage key is
// returned exactly as stored; applying the default is the caller's job.
func (r *SettingsRepo) Load(ctx context.Context) (model.Settings, string, bool, error) {
	var (
		s        model.Settings
		revision string
		found    bool
	)

	err := r.db.read(ctx, func(tx *sql.Tx) error {
		const query = `SELECT storage_key, protobuf_encoding FROM settings WHERE id = 1`
		err := tx.QueryRowContext(ctx, query).Scan(&s.StorageKey, &s.ProtobufEncoding)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get settings: %w", err)
		}
		found = true

		revision, _, err = loadRevision(ctx, tx, recordSettings)
		return err
	})
	if err != nil || !found {
		return model.Settings{}, "", false, err
	}

	return s, revision, true, nil
}

// Save inserts or replaces the settings row.
func (r *SettingsRepo) Save(ctx context.Context, s model.Settings, expected string) (string, error) {
	var revision string
	err := r.db.write(ctx, func(tx *sql.Tx) error {
		if err := checkRevision(ctx, tx, recordSettings, expected); err != nil {
			return err
		}

		const query = `
			INSERT INTO settings (id, storage_key, protobuf_encoding, updated_at)
			VALUES (1, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(id) DO UPDATE SET
				storage_key = excluded.storage_key,
				protobuf_encoding = excluded.protobuf_encoding,
				updated_at = excluded.updated_at
		`
		if _, err := tx.ExecContext(ctx, query, s.StorageKey, s.ProtobufEncoding); err != nil {
			return fmt.Errorf("set settings: %w", err)
		}

		var err error
		revision, err = bumpRevision(ctx, tx, recordSettings)
		return err
	})
	if err != nil {
		return "", err
	}
	return revision, nil
}
