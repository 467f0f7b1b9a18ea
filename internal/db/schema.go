package db

import (
	"net/url"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

func EnsureSchema(d *gorm.DB, schema string) error {
	return d.Exec(`CREATE SCHEMA IF NOT EXISTS ` + pq.QuoteIdentifier(schema)).Error
}

// WithSearchPath adds a search_path runtime parameter to dsn so that every
// pooled connection resolves unqualified tables in schema before public.
// Both URL and key=value DSNs are accepted.
func WithSearchPath(dsn, schema string) string {
	if schema == "" {
		return dsn
	}
	path := pq.QuoteIdentifier(schema) + ",public"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err == nil {
			q := u.Query()
			q.Set("search_path", path)
			u.RawQuery = q.Encode()
			return u.String()
		}
	}
	return strings.TrimSpace(dsn) + " search_path='" + strings.ReplaceAll(path, `'`, `\'`) + "'"
}

// Migrator is implemented by each feature package's Migrate function.
type Migrator func(*gorm.DB) error

// Migrate runs the feature migrations in order, stopping at the first failure.
func Migrate(d *gorm.DB, steps ...Migrator) error {
	for _, step := range steps {
		if err := step(d); err != nil {
			return err
		}
	}
	return nil
}
