package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with an initial admin account",
	Long:  `Seed the database with an approved admin account so the admin API is reachable on a fresh install.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		if seedAdminPassword == "" {
			log.Fatal("--admin-password is required")
		}

		db, err := initGormDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(seedAdminPassword), cfg.Security.BCryptCost)
		if err != nil {
			log.Fatalf("failed to hash admin password: %v", err)
		}

		var exists int
		row := db.Raw("SELECT 1 FROM users WHERE username = ?", seedAdminUsername).Row()
		if err := row.Scan(&exists); err == nil {
			fmt.Println("admin user already exists:", seedAdminUsername)
			return
		}

		if err := db.Exec(
			"INSERT INTO users (username, password_hash, pending, admin, created_at, updated_at) VALUES (?, ?, false, true, now(), now())",
			seedAdminUsername, string(hash),
		).Error; err != nil {
			log.Fatalf("failed to insert admin user: %v", err)
		}

		fmt.Println("Seeded admin user:", seedAdminUsername)

		if err := db.Exec(
			"INSERT INTO settings (key, value, updated_at) VALUES ('allow_register', ?, now()) ON CONFLICT (key) DO NOTHING",
			fmt.Sprintf("%t", cfg.Registry.DefaultAllowRegister),
		).Error; err != nil {
			log.Fatalf("failed to seed registration flag: %v", err)
		}

		fmt.Println("Seeded registration flag:", cfg.Registry.DefaultAllowRegister)
	},
}
