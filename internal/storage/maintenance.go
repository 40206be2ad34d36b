package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nixlim/herd-top/internal/errors"
)

const (
	maintenanceInterval = 1 * time.Hour
	vacuumInterval      = 7 * 24 * time.Hour
)

func (s *SQLiteKV) startMaintenance(ctx context.Context, retentionDays int) {
	go s.maintenanceLoop(ctx, retentionDays)
}

func (s *SQLiteKV) maintenanceLoop(ctx context.Context, retentionDays int) {
	defer close(s.maintenanceDone)

	lastVacuum := time.Now()
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.pruneExpired(retentionDays)
			if err != nil {
				s.logger.Errorw("storage maintenance failed", "error", err)
			} else if n > 0 {
				s.logger.Infow("pruned expired rows", "rows", n, "retention_days", retentionDays)
			}

			if time.Since(lastVacuum) >= vacuumInterval {
				if _, err := s.db.Exec("VACUUM"); err != nil {
					s.logger.Errorw("VACUUM failed", "error", err)
				} else {
					lastVacuum = time.Now()
				}
			}
		}
	}
}

// pruneExpired deletes rows of every namespace not written for
// retentionDays, so abandoned scopes do not accumulate. Pinned prefixes are
// kept regardless of age.
func (s *SQLiteKV) pruneExpired(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	var q strings.Builder
	q.WriteString("DELETE FROM kv WHERE datetime(updated_at) < datetime('now', ?)")
	args := []any{fmt.Sprintf("-%d days", retentionDays)}
	for _, p := range s.pinned {
		q.WriteString(" AND substr(key, 1, length(?)) <> ?")
		args = append(args, p, p)
	}

	res, err := s.db.Exec(q.String(), args...)
	if err != nil {
		return 0, errors.Wrap(err, "pruning expired rows")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting pruned rows")
	}
	return n, nil
}
