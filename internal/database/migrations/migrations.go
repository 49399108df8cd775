package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

//go:embed *.sql
var fs embed.FS

// Apply runs every embedded .sql file in name order. Files must be idempotent.
func Apply(ctx context.Context, db *sql.DB) error {
	files, err := fs.ReadDir(".")
	if err != nil {
		return fmt.Errorf("read embed dir: %w", err)
	}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".sql") {
			continue
		}

		code, err := fs.ReadFile(f.Name())
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, string(code)); err != nil {
			return fmt.Errorf("apply migration %s: %w", f.Name(), err)
		}
		zap.L().Info("migration applied", zap.String("file", f.Name()))
	}
	return nil
}
