package sqldb

import (
	"context"
	"fmt"
	"log/slog"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/taintpath/internal/core/domain"
	"github.com/tjfontaine/taintpath/internal/core/ports"
	"github.com/tjfontaine/taintpath/internal/storage/dialect"
)

// Store is the SQL backend shared by every command sink. It supports the
// sqlite, postgres and mysql dialects.
type Store struct {
	db      *sqlx.DB
	dialect dialect.Dialect
	logger  *slog.Logger
}

var _ ports.Backend = (*Store)(nil)

// Config holds database connection configuration
type Config struct {
	Driver string // Driver name: sqlite, postgres, mysql
	DSN    string // Data source name / connection string
	Logger *slog.Logger
}

// User is a row seeded into the users table at start.
type User struct {
	Username string `koanf:"username"`
	Email    string `koanf:"email"`
}

// New opens the database, applies dialect pragmas and creates the schema.
func New(cfg Config) (*Store, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Run dialect-specific initialization (e.g., PRAGMA for SQLite)
	for _, stmt := range d.PragmaStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	store := &Store{db: db, dialect: d, logger: logger}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSQLite creates a new SQLite store.
func NewSQLite(dbPath string) (*Store, error) {
	return New(Config{Driver: "sqlite", DSN: dbPath})
}

// DB returns the underlying sqlx.DB for advanced operations
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Dialect returns the dialect name.
func (s *Store) Dialect() string {
	return s.dialect.Name()
}

func (s *Store) initSchema() error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
	id %s,
	username %s NOT NULL UNIQUE,
	email %s
)`, s.dialect.AutoIncrementClause(), s.dialect.KeyTextType(), s.dialect.KeyTextType())

	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	return nil
}

// Seed inserts users that are not present yet.
func (s *Store) Seed(ctx context.Context, users []User) error {
	exists := s.dialect.Rebind(`SELECT COUNT(*) FROM users WHERE username = ?`)
	insert := s.dialect.Rebind(`INSERT INTO users (username, email) VALUES (?, ?)`)

	for _, u := range users {
		var n int
		if err := s.db.GetContext(ctx, &n, exists, u.Username); err != nil {
			return fmt.Errorf("failed to check user %q: %w", u.Username, err)
		}
		if n > 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, insert, u.Username, u.Email); err != nil {
			return fmt.Errorf("failed to seed user %q: %w", u.Username, err)
		}
	}

	s.logger.Info("seeded users", slog.Int("count", len(users)))
	return nil
}

// Acquire takes a dedicated connection from the pool for one sink call.
func (s *Store) Acquire(ctx context.Context) (ports.Session, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	return &session{conn: conn}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type session struct {
	conn *sqlx.Conn
}

func (c *session) Query(ctx context.Context, query string, args ...any) ([]domain.Record, error) {
	rows, err := c.conn.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []domain.Record{}
	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for k, v := range row {
			// Text columns arrive as []byte from some drivers.
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		records = append(records, domain.Record(row))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *session) Exec(ctx context.Context, query string, args ...any) (domain.ExecResult, error) {
	res, err := c.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.ExecResult{}, err
	}

	var out domain.ExecResult
	// Drivers that cannot report either value return an error; zero is kept.
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	return out, nil
}

func (c *session) Close() error {
	return c.conn.Close()
}
