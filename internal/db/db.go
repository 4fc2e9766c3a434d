package db

import "database/sql"

// DB wraps the sql pool so stores depend on a local type.
type DB struct {
	*sql.DB
}
