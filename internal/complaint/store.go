package complaint

import (
	"context"
	"strings"
)

// OpenStore picks a Store backend from the DSN: postgres:// URLs open
// Postgres, the literal "memory" opens the in-process store, anything else
// is treated as a SQLite path.
func OpenStore(ctx context.Context, dsn string) (Store, error) {
	switch {
	case dsn == "memory":
		return NewMemory(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(ctx, dsn)
	default:
		return OpenSQLite(ctx, dsn)
	}
}
