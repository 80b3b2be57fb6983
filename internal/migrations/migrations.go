package migrations

import (
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// Run creates the database schema required for the back office.
func Run(db *sqlx.DB) {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS sellers (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            role TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS products (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL UNIQUE,
            price INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS sales (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            seller_id INTEGER NOT NULL,
            product_id INTEGER NOT NULL,
            quantity INTEGER NOT NULL,
            sale_time TEXT NOT NULL,
            FOREIGN KEY(seller_id) REFERENCES sellers(id),
            FOREIGN KEY(product_id) REFERENCES products(id)
        );`,
		`CREATE TABLE IF NOT EXISTS inventory (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            seller_id INTEGER NOT NULL,
            product_id INTEGER NOT NULL,
            date TEXT NOT NULL,
            opening_balance INTEGER NOT NULL DEFAULT 0,
            receipt INTEGER NOT NULL DEFAULT 0,
            transfer INTEGER NOT NULL DEFAULT 0,
            write_off INTEGER NOT NULL DEFAULT 0,
            closing_balance INTEGER NOT NULL DEFAULT 0,
            UNIQUE(seller_id, product_id, date),
            FOREIGN KEY(seller_id) REFERENCES sellers(id),
            FOREIGN KEY(product_id) REFERENCES products(id)
        );`,
		`CREATE TABLE IF NOT EXISTS sessions (
            token TEXT PRIMARY KEY,
            seller_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            role TEXT NOT NULL,
            expires_at INTEGER NOT NULL
        );`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			logrus.Fatalf("migration failed: %v", err)
		}
	}
}
