package main

import (
	"context"
	"log"

	"referral-system/pkg/config"
	"referral-system/pkg/database/postgresql"
	"referral-system/seeders"
)

func main() {
	cfg := config.New()
	log.Println("using DSN:", cfg.Postgres.DSN)

	dbPool, err := postgresql.ConnectDB(context.Background(), cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer dbPool.Close()

	if err := postgresql.RunMigrations(dbPool); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	if err := seeders.SeedPartnerUsers(dbPool); err != nil {
		log.Fatalf("seeding failed: %v", err)
	}

	log.Println("done")
}
