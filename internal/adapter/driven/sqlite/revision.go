package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ericfisherdev/cookiesync/internal/domain/port/driven"
)

// Record names used as keys in record_revisions.
const (
	recordCredential   = "credential"
	recordSettings     = "settings"
	recordDomainConfig = "domain_config"
)

// bumpRevision assigns a fresh revision to record inside tx and returns it.
func bumpRevision(ctx context.Context, tx *sql.Tx, record string) (string, error) {
	revision := uuid.NewString()

	const query = `
		INSERT INTO record_revisions (record, revision, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(record) DO UPDATE SET
			revision = excluded.revision,
			updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, query, record, revision); err != nil {
		return "", fmt.Errorf("bump revision for %s: %w", record, err)
	}
	return revision, nil
}

// loadRevision returns the current revision of record, or ("", false) when
// the record has never been saved.
func loadRevision(ctx context.Context, tx *sql.Tx, record string) (string, bool, error) {
	const query = `SELECT revision FROM record_revisions WHERE record = ?`

	var revision string
	err := tx.QueryRowContext(ctx, query, record).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load revision for %s: %w", record, err)
	}
	return revision, true, nil
}

// checkRevision fails with driven.ErrRevisionConflict unless the stored
// revision of record is expected. It must run inside the write transaction
// that later bumps the revision.
func checkRevision(ctx context.Context, tx *sql.Tx, record, expected string) error {
	current, _, err := loadRevision(ctx, tx, record)
	if err != nil {
		return err
	}
	if current != expected {
		return fmt.Errorf("%s at revision %q, expected %q: %w", record, current, expected, driven.ErrRevisionConflict)
	}
	return nil
}
