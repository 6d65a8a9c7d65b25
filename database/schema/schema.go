// Package schema describes the storefront tables once and renders them for
// MySQL in production and SQLite in tests.
package schema

import (
	"fmt"
	"strings"
)

type Dialect int

const (
	MySQL Dialect = iota
	SQLite
)

// ColumnType is a dialect-neutral column type.
type ColumnType string

const (
	Serial    ColumnType = "serial"
	Integer   ColumnType = "integer"
	Timestamp ColumnType = "timestamp"
	Text      ColumnType = "TEXT"
	Money     ColumnType = "DECIMAL(10,2)"
)

func Varchar(n int) ColumnType { return ColumnType(fmt.Sprintf("VARCHAR(%d)", n)) }

type Column struct {
	Name    string
	Type    ColumnType
	NotNull bool
	Default string
}

type Index struct {
	Name    string
	Columns []string
}

type Table struct {
	Name    string
	Columns []Column
	// Constraints use syntax both dialects accept (UNIQUE, CHECK, FOREIGN KEY).
	Constraints []string
	Indexes     []Index
}

var Tables = []Table{
	{
		Name: "users",
		Columns: []Column{
			{Name: "id", Type: Serial},
			{Name: "username", Type: Varchar(50), NotNull: true},
			{Name: "email", Type: Varchar(255), NotNull: true},
			{Name: "password", Type: Varchar(255), NotNull: true},
			{Name: "created_at", Type: Timestamp, NotNull: true, Default: "CURRENT_TIMESTAMP"},
		},
		Constraints: []string{
			"CONSTRAINT uq_users_username UNIQUE (username)",
			"CONSTRAINT uq_users_email UNIQUE (email)",
		},
	},
	{
		Name: "products",
		Columns: []Column{
			{Name: "id", Type: Serial},
			{Name: "name", Type: Varchar(255), NotNull: true},
			{Name: "description", Type: Text},
			{Name: "price", Type: Money, NotNull: true},
			{Name: "stock", Type: Integer, NotNull: true, Default: "0"},
			{Name: "image", Type: Varchar(512)},
			{Name: "category", Type: Varchar(100)},
			{Name: "created_at", Type: Timestamp, NotNull: true, Default: "CURRENT_TIMESTAMP"},
		},
		Constraints: []string{
			"CONSTRAINT chk_products_price CHECK (price >= 0)",
			"CONSTRAINT chk_products_stock CHECK (stock >= 0)",
		},
	},
	{
		Name: "orders",
		Columns: []Column{
			{Name: "id", Type: Serial},
			{Name: "user_id", Type: Integer, NotNull: true},
			{Name: "total_price", Type: Money, NotNull: true},
			{Name: "status", Type: Varchar(20), NotNull: true, Default: "'pending'"},
			{Name: "order_date", Type: Timestamp, NotNull: true, Default: "CURRENT_TIMESTAMP"},
		},
		Constraints: []string{
			"FOREIGN KEY (user_id) REFERENCES users(id)",
		},
		Indexes: []Index{{Name: "idx_orders_user", Columns: []string{"user_id", "order_date"}}},
	},
	{
		Name: "order_items",
		Columns: []Column{
			{Name: "id", Type: Serial},
			{Name: "order_id", Type: Integer, NotNull: true},
			{Name: "product_id", Type: Integer, NotNull: true},
			{Name: "quantity", Type: Integer, NotNull: true},
			{Name: "price_at_time", Type: Money, NotNull: true},
		},
		Constraints: []string{
			"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
			"FOREIGN KEY (product_id) REFERENCES products(id)",
		},
	},
}

// Statements returns the idempotent DDL for every table, in dependency order.
func Statements(d Dialect) []string {
	var out []string
	for _, t := range Tables {
		out = append(out, t.statements(d)...)
	}
	return out
}

func (t Table) statements(d Dialect) []string {
	defs := make([]string, 0, len(t.Columns)+len(t.Constraints)+len(t.Indexes))
	for _, c := range t.Columns {
		defs = append(defs, c.definition(d))
	}
	defs = append(defs, t.Constraints...)
	// MySQL has no CREATE INDEX IF NOT EXISTS, so its indexes go inline.
	if d == MySQL {
		for _, idx := range t.Indexes {
			defs = append(defs, fmt.Sprintf("INDEX %s (%s)", idx.Name, strings.Join(idx.Columns, ", ")))
		}
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", t.Name, strings.Join(defs, ",\n\t"))}
	if d == SQLite {
		for _, idx := range t.Indexes {
			stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
				idx.Name, t.Name, strings.Join(idx.Columns, ", ")))
		}
	}
	return stmts
}

func (c Column) definition(d Dialect) string {
	if c.Type == Serial {
		if d == MySQL {
			return c.Name + " INT AUTO_INCREMENT PRIMARY KEY"
		}
		return c.Name + " INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte(' ')
	b.WriteString(c.Type.sql(d))
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}
	return b.String()
}

func (t ColumnType) sql(d Dialect) string {
	switch t {
	case Integer:
		if d == MySQL {
			return "INT"
		}
		return "INTEGER"
	case Timestamp:
		if d == MySQL {
			return "TIMESTAMP"
		}
		return "DATETIME"
	default:
		return string(t)
	}
}
