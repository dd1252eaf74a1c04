// Package directory is the boundary to the platform's student roster,
// used to list potential PvP opponents.
package directory

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/marsdevs/chess-arena/internal/domain"
)

// Directory lists students a player can challenge. Eligibility beyond
// "not yourself" is the platform's business, not the arena's.
type Directory interface {
	Students(ctx context.Context, excludeID string, limit int) ([]domain.Student, error)
}

type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

// Students returns recently active students, the exclude id filtered
// out, most recently seen first.
func (d *PostgresDirectory) Students(ctx context.Context, excludeID string, limit int) ([]domain.Student, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT id, username, last_active_at
	      FROM students
	      WHERE id <> $1
	      ORDER BY last_active_at DESC
	      LIMIT $2`
	rows, err := d.db.QueryContext(ctx, q, excludeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Student
	for rows.Next() {
		var s domain.Student
		var lastActive sql.NullTime
		if err := rows.Scan(&s.ID, &s.Username, &lastActive); err != nil {
			return nil, err
		}
		if lastActive.Valid {
			s.LastActiveAt = lastActive.Time
		} else {
			s.LastActiveAt = time.Time{}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
