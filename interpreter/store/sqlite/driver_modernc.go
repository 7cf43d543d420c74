//go:build !cgo_sqlite

package sqlite

import (
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// dsn builds a modernc.org/sqlite DSN. modernc takes pragmas as
// repeated _pragma=name(value) query parameters.
func dsn(path string, pragmas ...pragma) string {
	q := make([]string, 0, len(pragmas))
	for _, p := range pragmas {
		q = append(q, "_pragma="+p.name+"("+p.value+")")
	}
	return withQuery(path, q)
}
