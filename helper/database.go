package helper

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// DatabaseConfiguration holds the connection settings of the postgres database
type DatabaseConfiguration struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	Schema   string
	SSLMode  string
	// Connection pool
	MaxOpenConns int
	MaxIdleConns int
}

// NewDatabaseConfiguration reads the database configuration from the
// WIKIGRAPH_DB_* environment variables (a .env file is loaded if present).
func NewDatabaseConfiguration() (*DatabaseConfiguration, error) {
	_ = godotenv.Load()

	config := &DatabaseConfiguration{
		Host:         os.Getenv("WIKIGRAPH_DB_HOST"),
		Port:         os.Getenv("WIKIGRAPH_DB_PORT"),
		Database:     os.Getenv("WIKIGRAPH_DB_DATABASE"),
		Username:     os.Getenv("WIKIGRAPH_DB_USERNAME"),
		Password:     os.Getenv("WIKIGRAPH_DB_PASSWORD"),
		Schema:       os.Getenv("WIKIGRAPH_DB_SCHEMA"),
		SSLMode:      os.Getenv("WIKIGRAPH_DB_SSLMODE"),
		MaxOpenConns: 25,
		MaxIdleConns: 5,
	}

	if len(config.Host) == 0 || len(config.Port) == 0 || len(config.Database) == 0 || len(config.Username) == 0 || len(config.Password) == 0 {
		return nil, fmt.Errorf("WIKIGRAPH_DB_HOST, WIKIGRAPH_DB_PORT, WIKIGRAPH_DB_DATABASE, WIKIGRAPH_DB_USERNAME and WIKIGRAPH_DB_PASSWORD must be set")
	}
	if len(config.Schema) == 0 {
		config.Schema = "public"
	}
	if len(config.SSLMode) == 0 {
		config.SSLMode = "disable"
	}
	if v := os.Getenv("WIKIGRAPH_DB_MAX_OPEN_CONNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid WIKIGRAPH_DB_MAX_OPEN_CONNS: %w", err)
		}
		config.MaxOpenConns = n
	}

	return config, nil
}

// DatabaseConnectionString returns the postgres connection url
func (c *DatabaseConfiguration) DatabaseConnectionString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   fmt.Sprintf("%s:%s", c.Host, c.Port),
		Path:   c.Database,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	q.Set("search_path", c.Schema)
	u.RawQuery = q.Encode()
	return u.String()
}

// SetTestDatabaseConfigEnvs sets the database env vars for a test container
func SetTestDatabaseConfigEnvs(t *testing.T, dbPort string) {
	t.Setenv("WIKIGRAPH_DB_HOST", "localhost")
	t.Setenv("WIKIGRAPH_DB_PORT", dbPort)
	t.Setenv("WIKIGRAPH_DB_DATABASE", "database")
	t.Setenv("WIKIGRAPH_DB_USERNAME", "user")
	t.Setenv("WIKIGRAPH_DB_PASSWORD", "password")
	t.Setenv("WIKIGRAPH_DB_SCHEMA", "public")
	t.Setenv("WIKIGRAPH_DB_SSLMODE", "disable")
}

// Database is a named postgres connection with its logger
type Database struct {
	Name     string
	Logger   *slog.Logger
	Instance *sql.DB
}

// NewDatabase connects to the database and fails hard if it is unreachable
func NewDatabase(name string, config *DatabaseConfiguration, logger *slog.Logger) *Database {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := connect(config, 5, time.Second)
	if err != nil {
		log.Fatalf("error connecting to database %s: %v", name, err)
	}

	logger.Info("Connected to database", slog.String("name", name), slog.String("host", config.Host))

	return &Database{
		Name:     name,
		Logger:   logger,
		Instance: db,
	}
}

// NewTestDatabase connects to a test database with a discarding logger
func NewTestDatabase(config *DatabaseConfiguration) *Database {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return NewDatabase("test", config, logger)
}

func connect(config *DatabaseConfiguration, attempts int, wait time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", config.DatabaseConnectionString())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	err = RetryWithBackoff(context.Background(), func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	}, attempts, wait)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Close closes the underlying connection pool
func (d *Database) Close() error {
	if d == nil || d.Instance == nil {
		return nil
	}
	return d.Instance.Close()
}
