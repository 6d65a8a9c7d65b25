package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storefront/database/schema"
)

// AutoMigrate creates the tables if they do not exist. Each statement is
// retried up to retries times with a one second pause.
func AutoMigrate(ctx context.Context, db *sql.DB, retries int) error {
	return migrate(ctx, db, schema.Statements(schema.MySQL), retries)
}

func migrate(ctx context.Context, db *sql.DB, statements []string, retries int) error {
	for _, stmt := range statements {
		_, err := db.ExecContext(ctx, stmt)
		for i := 0; err != nil && i < retries; i++ {
			time.Sleep(1 * time.Second)
			_, err = db.ExecContext(ctx, stmt)
		}
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
