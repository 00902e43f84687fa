// Package dialect describes the SQL differences between the supported
// backends: driver names, placeholder style, schema types and RETURNING.
package dialect

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect represents a SQL database dialect.
type Dialect interface {
	// Name returns the dialect name ("sqlite", "postgres", "mysql").
	Name() string

	// DriverName returns the database/sql driver name to open.
	DriverName() string

	// Rebind converts ? placeholders to the dialect's format.
	Rebind(query string) string

	// AutoIncrementClause is the column definition of the users id.
	AutoIncrementClause() string

	// KeyTextType is a text type that may carry a UNIQUE constraint.
	KeyTextType() string

	// SupportsReturning reports whether INSERT ... RETURNING is available.
	SupportsReturning() bool

	// PragmaStatements run once after the database is opened.
	PragmaStatements() []string
}

// DialectType represents supported database types
type DialectType string

const (
	SQLite   DialectType = "sqlite"
	Postgres DialectType = "postgres"
	MySQL    DialectType = "mysql"
)

type sqlDialect struct {
	name      DialectType
	driver    string
	numbered  bool
	autoInc   string
	keyText   string
	returning bool
	pragmas   []string
}

var dialects = map[DialectType]*sqlDialect{
	SQLite: {
		name:      SQLite,
		driver:    "sqlite",
		autoInc:   "INTEGER PRIMARY KEY AUTOINCREMENT",
		keyText:   "TEXT",
		returning: true, // 3.35+
		pragmas:   []string{"PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"},
	},
	Postgres: {
		name:      Postgres,
		driver:    "pgx",
		numbered:  true,
		autoInc:   "SERIAL PRIMARY KEY",
		keyText:   "VARCHAR(255)",
		returning: true,
	},
	MySQL: {
		name:    MySQL,
		driver:  "mysql",
		autoInc: "INT AUTO_INCREMENT PRIMARY KEY",
		keyText: "VARCHAR(255)",
	},
}

// driverAliases maps configured driver names onto dialects.
var driverAliases = map[string]DialectType{
	"sqlite":   SQLite,
	"sqlite3":  SQLite,
	"postgres": Postgres,
	"pgx":      Postgres,
	"mysql":    MySQL,
}

// New returns the dialect of the given type.
func New(dialectType DialectType) (Dialect, error) {
	d, ok := dialects[dialectType]
	if !ok {
		return nil, fmt.Errorf("unsupported dialect: %s", dialectType)
	}
	return d, nil
}

// FromDriverName returns the dialect for a configured driver name.
func FromDriverName(driverName string) (Dialect, error) {
	t, ok := driverAliases[strings.ToLower(driverName)]
	if !ok {
		return nil, fmt.Errorf("unsupported driver: %s", driverName)
	}
	return dialects[t], nil
}

func (d *sqlDialect) Name() string                { return string(d.name) }
func (d *sqlDialect) DriverName() string          { return d.driver }
func (d *sqlDialect) AutoIncrementClause() string { return d.autoInc }
func (d *sqlDialect) KeyTextType() string         { return d.keyText }
func (d *sqlDialect) SupportsReturning() bool     { return d.returning }
func (d *sqlDialect) PragmaStatements() []string  { return d.pragmas }

// Rebind numbers placeholders ($1, $2, ...) for dialects that need it.
func (d *sqlDialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch != '?' {
			b.WriteRune(ch)
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}
