package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ericfisherdev/cookiesync/internal/domain/model"
	"github.com/ericfisherdev/cookiesync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.DomainConfigStore = (*DomainConfigRepo)(nil)

// DomainConfigRepo is the SQLite implementation of the DomainConfigStore port.
// Each domain is one row; the collection as a whole shares one revision.
type DomainConfigRepo struct {
	db *DB
}

// NewDomainConfigRepo creates a new DomainConfigRepo backed by the given DB.
func NewDomainConfigRepo(db *DB) *DomainConfigRepo {
	return &DomainConfigRepo{db: db}
}

// Load returns every domain entry. ok is false only when the collection has
// never been saved; an emptied collection loads as ok with no entries.
func (r *DomainConfigRepo) Load(ctx context.Context) (model.DomainConfigs, string, bool, error) {
	configs := model.DomainConfigs{}
	var (
		revision string
		found    bool
	)

	err := r.db.read(ctx, func(tx *sql.Tx) error {
		const query = `SELECT domain, config FROM domain_configs ORDER BY domain`
		rows, err := tx.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("list domain configs: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var domain, config string
			if err := rows.Scan(&domain, &config); err != nil {
				return fmt.Errorf("scan domain config: %w", err)
			}
			configs[domain] = json.RawMessage(config)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate domain configs: %w", err)
		}

		revision, found, err = loadRevision(ctx, tx, recordDomainConfig)
		return err
	})
	if err != nil {
		return nil, "", false, err
	}

	// Rows written before any revision existed still count as stored.
	if !found && len(configs) == 0 {
		return nil, "", false, nil
	}
	return configs, revision, true, nil
}

// Save replaces the whole collection in one transaction.
func (r *DomainConfigRepo) Save(ctx context.Context, configs model.DomainConfigs, expected string) (string, error) {
	var revision string
	err := r.db.write(ctx, func(tx *sql.Tx) error {
		if err := checkRevision(ctx, tx, recordDomainConfig, expected); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM domain_configs`); err != nil {
			return fmt.Errorf("clear domain configs: %w", err)
		}

		if len(configs) > 0 {
			stmt, err := tx.PrepareContext(ctx,
				`INSERT INTO domain_configs (domain, config, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`)
			if err != nil {
				return fmt.Errorf("prepare domain config insert: %w", err)
			}
			defer stmt.Close()

			for _, domain := range configs.Domains() {
				if _, err := stmt.ExecContext(ctx, domain, string(configs[domain])); err != nil {
					return fmt.Errorf("insert domain config %q: %w", domain, err)
				}
			}
		}

		var err error
		revision, err = bumpRevision(ctx, tx, recordDomainConfig)
		return err
	})
	if err != nil {
		return "", err
	}
	return revision, nil
}
