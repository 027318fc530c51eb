package accounts

import (
	"context"

	"github.com/uptrace/bun"
)

var userIndexes = []struct {
	name    string
	columns []string
}{
	{"users_status_idx", []string{"status"}},
	{"users_role_idx", []string{"role"}},
	{"users_created_at_idx", []string{"created_at"}},
}

// Migrate creates the users table and its indexes when they are missing.
func Migrate(ctx context.Context, db bun.IDB) error {
	if _, err := db.NewCreateTable().
		Model((*User)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}

	for _, idx := range userIndexes {
		if _, err := db.NewCreateIndex().
			Model((*User)(nil)).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
