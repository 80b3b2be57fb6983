package seed

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"posdesk/m/domain"
)

// LoadSellers ingests a name,password,role CSV into the sellers table,
// hashing passwords and ignoring names that already exist.
func LoadSellers(db *sqlx.DB, csvPath string) {
	file, err := os.Open(csvPath)
	if err != nil {
		logrus.Warnf("unable to load seller list %s: %v", csvPath, err)
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// Skip header
	if _, err := reader.Read(); err != nil {
		logrus.Warnf("unable to read seller header: %v", err)
		return
	}

	tx, err := db.Beginx()
	if err != nil {
		logrus.Warnf("unable to start seller transaction: %v", err)
		return
	}
	stmt, err := tx.Preparex(`INSERT OR IGNORE INTO sellers (name, password, role) VALUES (?, ?, ?)`)
	if err != nil {
		logrus.Warnf("unable to prepare seller insert: %v", err)
		_ = tx.Rollback()
		return
	}
	defer stmt.Close()

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logrus.Warnf("unable to read seller row: %v", err)
			continue
		}
		if len(record) < 3 {
			continue
		}
		name := strings.TrimSpace(record[0])
		password := record[1]
		role := strings.TrimSpace(record[2])

		if name == "" || password == "" {
			continue
		}
		if role != domain.RoleSeller && role != domain.RoleAdmin {
			logrus.Warnf("skipping seller %s with unknown role %q", name, role)
			continue
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			logrus.Warnf("unable to hash password for %s: %v", name, err)
			continue
		}

		if _, err := stmt.Exec(name, hashed, role); err != nil {
			logrus.Warnf("unable to insert seller %s: %v", name, err)
		} else {
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		logrus.Warnf("unable to commit seller seed: %v", err)
	} else {
		logrus.Infof("seeded sellers with %d rows", rows)
	}
}

// LoadProducts ingests a name,price CSV into the product catalog, ignoring
// names that already exist.
func LoadProducts(db *sqlx.DB, csvPath string) {
	file, err := os.Open(csvPath)
	if err != nil {
		logrus.Warnf("unable to load product catalog %s: %v", csvPath, err)
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil {
		logrus.Warnf("unable to read product header: %v", err)
		return
	}

	tx, err := db.Beginx()
	if err != nil {
		logrus.Warnf("unable to start product transaction: %v", err)
		return
	}
	stmt, err := tx.Preparex(`INSERT OR IGNORE INTO products (name, price) VALUES (?, ?)`)
	if err != nil {
		logrus.Warnf("unable to prepare product insert: %v", err)
		_ = tx.Rollback()
		return
	}
	defer stmt.Close()

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logrus.Warnf("unable to read product row: %v", err)
			continue
		}
		if len(record) < 2 {
			continue
		}
		name := strings.TrimSpace(record[0])
		price, err := strconv.ParseInt(strings.TrimSpace(record[1]), 10, 64)
		if name == "" || err != nil || price < 0 {
			continue
		}

		if _, err := stmt.Exec(name, price); err != nil {
			logrus.Warnf("unable to insert product %s: %v", name, err)
		} else {
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		logrus.Warnf("unable to commit product seed: %v", err)
	} else {
		logrus.Infof("seeded product catalog with %d rows", rows)
	}
}
