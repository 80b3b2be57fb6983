package main

import (
	"flag"

	"github.com/joho/godotenv"

	"posdesk/m/internal/config"
	"posdesk/m/internal/database"
	"posdesk/m/internal/migrations"
	"posdesk/m/internal/seed"
)

// One-shot provisioning: loads sellers (and optionally products) from CSV
// files into the back-office database.
func main() {
	sellersCSV := flag.String("sellers", "assets/sellers.csv", "CSV of name,password,role rows")
	productsCSV := flag.String("products", "", "optional CSV of name,price rows")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Load()
	db := database.Connect(cfg.DatabaseDSN)
	defer db.Close()

	migrations.Run(db)

	seed.LoadSellers(db, *sellersCSV)
	if *productsCSV != "" {
		seed.LoadProducts(db, *productsCSV)
	}
}
