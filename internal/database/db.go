package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// DSN builds a go-sql-driver DSN.  Extra params are appended as-is
// (e.g. "multiStatements=true" for migrations).
func DSN(user, pass, host, port, name string, params ...string) string {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	q := append([]string{"charset=utf8mb4", "parseTime=true", "loc=UTC"}, params...)
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?%s", auth, host, port, name, strings.Join(q, "&"))
}

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string, params ...string) (*sql.DB, error) {
	db, err := sql.Open("mysql", DSN(user, pass, host, port, name, params...))
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
