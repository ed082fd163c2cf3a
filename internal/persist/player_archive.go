package persist

import (
	"context"
	"time"
)

// PlayerArchive records which players exist so they can be recreated on
// boot before their code is restored.
type PlayerArchive struct {
	db *DB
}

func NewPlayerArchive(db *DB) *PlayerArchive {
	return &PlayerArchive{db: db}
}

func (a *PlayerArchive) Save(ctx context.Context, username string) error {
	_, err := a.db.SQL.ExecContext(ctx, a.db.rebind(
		`INSERT INTO players (username, created_at) VALUES (?, ?)
		 ON CONFLICT (username) DO NOTHING`),
		username, time.Now().UTC(),
	)
	return err
}

// LoadAll returns usernames in creation order.
func (a *PlayerArchive) LoadAll(ctx context.Context) ([]string, error) {
	rows, err := a.db.SQL.QueryContext(ctx, `SELECT username FROM players ORDER BY created_at, username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
