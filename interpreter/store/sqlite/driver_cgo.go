//go:build cgo_sqlite

package sqlite

import (
	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"

// dsn builds a mattn/go-sqlite3 DSN. mattn takes each pragma as its
// own _name=value query parameter.
func dsn(path string, pragmas ...pragma) string {
	q := make([]string, 0, len(pragmas))
	for _, p := range pragmas {
		q = append(q, "_"+p.name+"="+p.value)
	}
	return withQuery(path, q)
}
