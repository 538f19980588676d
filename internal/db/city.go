package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrNoImport = errors.New("no successful import")

// WithDBName returns dsn with its database path replaced. A DSN without a
// scheme is read as postgres://.
func WithDBName(dsn, database string) (string, error) {
	if dsn == "" {
		return "", fmt.Errorf("empty DSN")
	}
	if !strings.Contains(dsn, "://") {
		dsn = "postgres://" + dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	u.Path = "/" + strings.TrimPrefix(database, "/")
	return u.String(), nil
}

// ResolveLatestImportDBName returns the most recently imported database whose
// name contains city, from public.latest_successful_imports of the meta database.
func ResolveLatestImportDBName(ctx context.Context, meta *sql.DB, city string) (string, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return "", fmt.Errorf("city is required")
	}
	q := `
SELECT db_name
FROM public.latest_successful_imports
WHERE db_name ILIKE '%' || $1 || '%'
ORDER BY imported_at DESC
LIMIT 1`
	var name sql.NullString
	err := meta.QueryRowContext(ctx, q, city).Scan(&name)
	switch {
	case errors.Is(err, sql.ErrNoRows), err == nil && name.String == "":
		return "", fmt.Errorf("%w for city like %q", ErrNoImport, city)
	case err != nil:
		return "", fmt.Errorf("query latest import: %w", err)
	}
	return name.String, nil
}

// ResolveCityDSN connects to the cluster's 'postgres' database and returns the
// DSN and name of the latest import of city.
func ResolveCityDSN(ctx context.Context, baseDSN, city string) (dsn, name string, err error) {
	rootDSN, err := WithDBName(baseDSN, "postgres")
	if err != nil {
		return "", "", fmt.Errorf("invalid base DSN: %w", err)
	}
	meta, err := Open(rootDSN)
	if err != nil {
		return "", "", fmt.Errorf("open meta db: %w", err)
	}
	defer meta.Close()
	if err := Ping(ctx, meta); err != nil {
		return "", "", fmt.Errorf("ping meta db: %w", err)
	}
	if name, err = ResolveLatestImportDBName(ctx, meta, city); err != nil {
		return "", "", err
	}
	dsn, err = WithDBName(baseDSN, name)
	return dsn, name, err
}
