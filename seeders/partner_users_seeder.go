package seeders

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type demoUser struct {
	fullName string
	email    string
	password string
	company  string
	role     string
}

var demoUsers = []demoUser{
	{"Platform Admin", "admin@referral-system.local", "admin12345", "", "admin"},
	{"Dana Whitfield", "dana@northwind-partners.local", "partner12345", "Northwind Partners", "partner"},
	{"Miguel Ortega", "miguel@summitgroup.local", "partner12345", "Summit Group", "partner"},
}

// SeedPartnerUsers creates the demo admin and partner accounts.
// Existing accounts are left alone, so the seeder is safe to re-run.
func SeedPartnerUsers(db *pgxpool.Pool) error {
	ctx := context.Background()
	log.Println("seeding partner users...")

	for _, u := range demoUsers {
		var existingID uint64
		err := db.QueryRow(ctx, "SELECT id FROM users WHERE email = $1", u.email).Scan(&existingID)
		if err == nil {
			log.Printf("  - %s already exists, skipping", u.email)
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to check user %s: %w", u.email, err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password for %s: %w", u.email, err)
		}

		var company interface{}
		if u.company != "" {
			company = u.company
		}

		_, err = db.Exec(ctx,
			"INSERT INTO users (full_name, email, password_hash, company_name, role) VALUES ($1, $2, $3, $4, $5)",
			u.fullName, u.email, string(hash), company, u.role,
		)
		if err != nil {
			return fmt.Errorf("failed to insert user %s: %w", u.email, err)
		}
		log.Printf("  - created %s (%s)", u.email, u.role)
	}

	log.Println("partner users seeded")
	return nil
}
