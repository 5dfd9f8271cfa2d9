package db

import (
	"errors"
	"fmt"
	"log"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/auth"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/model"

	"gorm.io/gorm"
)

// Migrate runs database migrations for all models
func Migrate(db *gorm.DB) error {
	log.Println("Starting database migration...")

	// List of all models to migrate
	models := []interface{}{
		&model.User{},
		&model.Node{},
		&model.SyncRun{},
		&model.WSEvent{},
	}

	// Run AutoMigrate for all models
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Printf("✓ Database migration completed successfully (%d tables)", len(models))
	return nil
}

// SeedDefaultAdmin creates the initial admin user when no users exist.
// The default credentials mirror a fresh Technitium install (admin/admin)
// and should be changed on first login.
func SeedDefaultAdmin(db *gorm.DB) error {
	var user model.User
	err := db.Where("username = ?", "admin").First(&user).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check admin user: %w", err)
	}

	hash, err := auth.HashPassword("admin")
	if err != nil {
		return fmt.Errorf("failed to hash default password: %w", err)
	}
	admin := model.User{
		Username:     "admin",
		PasswordHash: hash,
		Role:         "admin",
		Status:       model.UserStatusActive,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	log.Println("✓ Seeded default admin user (change the password)")
	return nil
}
