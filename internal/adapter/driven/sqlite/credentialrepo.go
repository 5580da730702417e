package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/cookiesync/internal/domain/model"
	"github.com/ericfisherdev/cookiesync/internal/domain/port/driven"
)

var errEncryptionKeyNotSet = driven.ErrEncryptionKeyNotSet

// tokenAD binds sealed tokens to their column so a sealed value cannot be
// replayed into another field.
var tokenAD = []byte("credentials.token")

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// The credential is a single row; a non-empty token is sealed before write
// and opened after read. Account and namespace ids are stored in clear.
type CredentialRepo struct {
	db     *DB
	sealer sealer
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes, or nil
// to disable sealing; without a key only an empty token can be stored.
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	return &CredentialRepo{db: db, sealer: sealer{key: key}}
}

// Load returns the stored credential and its revision.
func (r *CredentialRepo) Load(ctx context.Context) (model.Credential, string, bool, error) {
	var (
		cred     model.Credential
		sealed   string
		revision string
		found    bool
	)

	err := r.db.read(ctx, func(tx *sql.Tx) error {
		const query = `SELECT token, account_id, namespace_id FROM credentials WHERE id = 1`
		err := tx.QueryRowContext(ctx, query).Scan(&sealed, &cred.AccountID, &cred.NamespaceID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get credential: %w", err)
		}
		found = true

		revision, _, err = loadRevision(ctx, tx, recordCredential)
		return err
	})
	if err != nil || !found {
		return model.Credential{}, "", false, err
	}

	if sealed != "" {
		cred.Token, err = r.sealer.open(sealed, tokenAD)
		if err != nil {
			return model.Credential{}, "", false, fmt.Errorf("open credential token: %w", err)
		}
	}

	return cred, revision, true, nil
}

// Save stores or replaces the credential.
func (r *CredentialRepo) Save(ctx context.Context, cred model.Credential, expected string) (string, error) {
	var sealed string
	if cred.Token != "" {
		var err error
		sealed, err = r.sealer.seal(cred.Token, tokenAD)
		if err != nil {
			return "", fmt.Errorf("seal credential token: %w", err)
		}
	}

	var revision string
	err := r.db.write(ctx, func(tx *sql.Tx) error {
		if err := checkRevision(ctx, tx, recordCredential, expected); err != nil {
			return err
		}

		const query = `
			INSERT INTO credentials (id, token, account_id, namespace_id, updated_at)
			VALUES (1, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(id) DO UPDATE SET
				token = excluded.token,
				account_id = excluded.account_id,
				namespace_id = excluded.namespace_id,
				updated_at = excluded.updated_at
		`
		if _, err := tx.ExecContext(ctx, query, sealed, cred.AccountID, cred.NamespaceID); err != nil {
			return fmt.Errorf("set credential: %w", err)
		}

		var err error
		revision, err = bumpRevision(ctx, tx, recordCredential)
		return err
	})
	if err != nil {
		return "", err
	}
	return revision, nil
}

// Sealed reports whether tokens are encrypted at rest.
func (r *CredentialRepo) Sealed() bool {
	return r.sealer.enabled()
}
