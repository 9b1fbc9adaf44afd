package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Purger permanently removes records soft-deleted before cutoff.
type Purger interface {
	PurgeDeleted(ctx context.Context, cutoff time.Time) (passwords, banks int64, err error)
}

// StartSoftDeleteCleaner purges expired soft-deleted passwords and banks
// every interval until ctx is cancelled. Records deleted more than
// retention ago are removed for good.
func StartSoftDeleteCleaner(
	ctx context.Context,
	p Purger,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().UTC().Add(-retention)
				passwords, banks, err := p.PurgeDeleted(ctx, cutoff)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Error("failed to clean soft-deleted records", zap.Error(err))
					continue
				}
				if passwords > 0 || banks > 0 {
					log.Info("cleaned soft-deleted records",
						zap.Int64("passwords", passwords),
						zap.Int64("banks", banks),
					)
				}
			}
		}
	}()
}

// PostgresPurger purges soft-deleted rows from PostgreSQL.
type PostgresPurger struct {
	DB *sql.DB
}

// NewPostgresPurger returns a PostgresPurger using db.
func NewPostgresPurger(db *sql.DB) *PostgresPurger {
	return &PostgresPurger{DB: db}
}

// PurgeDeleted removes expired passwords, then expired banks. Removing a bank
// cascades to its roles, memberships and passwords.
func (p *PostgresPurger) PurgeDeleted(ctx context.Context, cutoff time.Time) (passwords, banks int64, err error) {
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin purge: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
        DELETE FROM passwords
         WHERE deleted = true
           AND deleted_at < $1
    `, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("purge passwords: %w", err)
	}
	if passwords, err = res.RowsAffected(); err != nil {
		return 0, 0, fmt.Errorf("count purged passwords: %w", err)
	}

	res, err = tx.ExecContext(ctx, `
        DELETE FROM banks
         WHERE deleted = true
           AND deleted_at < $1
    `, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("purge banks: %w", err)
	}
	if banks, err = res.RowsAffected(); err != nil {
		return 0, 0, fmt.Errorf("count purged banks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit purge: %w", err)
	}
	return passwords, banks, nil
}
