package sqlstore

import (
	"fmt"

	"github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/config"
)

// Dialect holds the driver specific parts of the store.
type Dialect struct {
	Name        string
	DriverName  string
	Placeholder squirrel.PlaceholderFormat
	blobType    string
	// singleConn serializes access for drivers with one writer.
	singleConn bool
	pragmas    string
}

var (
	// SQLite is the modernc.org/sqlite dialect.
	SQLite = Dialect{
		Name:        "sqlite",
		DriverName:  "sqlite",
		Placeholder: squirrel.Question,
		blobType:    "BLOB",
		singleConn:  true,
		pragmas: `
			PRAGMA busy_timeout = 5000;
			PRAGMA journal_mode = WAL;
		`,
	}

	// Postgres is the lib/pq dialect.
	Postgres = Dialect{
		Name:        "postgres",
		DriverName:  "postgres",
		Placeholder: squirrel.Dollar,
		blobType:    "BYTEA",
	}
)

func (d Dialect) schema(table string) string {
	return fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		cache_key TEXT NOT NULL,
		field TEXT NOT NULL,
		value %[2]s NOT NULL,
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (cache_key, field)
	)`, table, d.blobType)
}

// PostgresDSN renders a lib/pq connection string.
func PostgresDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
		cfg.Database,
		cfg.SSLMode,
	)
}

