// Package dbtest provides an in-memory SQLite database carrying the storefront
// schema, rendered from the same table definitions as the MySQL migrations.
// For tests only.
package dbtest

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"storefront/database/schema"
)

// Open returns a fresh database closed at the end of the test. The pool is
// pinned to one connection so every query sees the same in-memory database.
func Open(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, stmt := range schema.Statements(schema.SQLite) {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

// InsertUser stores a user with an already hashed password and returns its id.
func InsertUser(t testing.TB, db *sql.DB, username, email, passwordHash string) int {
	t.Helper()
	res, err := db.Exec(`INSERT INTO users (username, email, password) VALUES (?, ?, ?)`, username, email, passwordHash)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	id, _ := res.LastInsertId()
	return int(id)
}

// InsertProduct stores a product and returns its id.
func InsertProduct(t testing.TB, db *sql.DB, name, price string, stock int) int {
	t.Helper()
	res, err := db.Exec(
		`INSERT INTO products (name, description, price, stock, image, category, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		name, name+" description", decimal.RequireFromString(price), stock, "/img/"+name+".jpg", "general", time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("insert product: %v", err)
	}
	id, _ := res.LastInsertId()
	return int(id)
}

// Stock reads the current stock of a product.
func Stock(t testing.TB, db *sql.DB, productID int) int {
	t.Helper()
	var stock int
	if err := db.QueryRow(`SELECT stock FROM products WHERE id = ?`, productID).Scan(&stock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return stock
}

// Count returns the number of rows in table.
func Count(t testing.TB, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
