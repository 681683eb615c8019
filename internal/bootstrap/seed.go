package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"anoa.com/schoolportal/internal/entity"
	"anoa.com/schoolportal/internal/policy"
	"anoa.com/schoolportal/pkg/password"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var Sections = []string{"A", "B"}

// AdminSeed carries the bootstrap credentials.
type AdminSeed struct {
	Email    string
	Password string
	// Always seeds even when another admin exists. Only set in development.
	Always bool
}

// SeedClasses makes sure every grade/section pair exists.
func SeedClasses(ctx context.Context, db *gorm.DB) error {
	classes := make([]entity.Class, 0, len(entity.Grades)*len(Sections))
	for _, grade := range entity.Grades {
		for _, section := range Sections {
			classes = append(classes, entity.Class{
				Name:    grade + " " + section,
				Grade:   grade,
				Section: section,
			})
		}
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&classes).Error
}

// SeedAdminUser creates the bootstrap admin. Outside development it only runs while
// no admin account exists, and an existing account with the same email is left alone.
func SeedAdminUser(ctx context.Context, db *gorm.DB, seed AdminSeed, log *zap.Logger) error {
	email := strings.ToLower(strings.TrimSpace(seed.Email))
	if email == "" {
		return nil
	}

	q := db.WithContext(ctx).Model(&entity.User{})
	if !seed.Always {
		var admins int64
		if err := q.Where("role = ?", policy.RoleAdmin).Count(&admins).Error; err != nil {
			return fmt.Errorf("count admins: %w", err)
		}
		if admins > 0 {
			return nil
		}
	}

	var existing int64
	if err := db.WithContext(ctx).Model(&entity.User{}).Where("LOWER(email) = ?", email).Count(&existing).Error; err != nil {
		return fmt.Errorf("look up admin: %w", err)
	}
	if existing > 0 {
		log.Info("admin user already exists, skipping seed", zap.String("email", email))
		return nil
	}

	if seed.Password == "" {
		return errors.New("ADMIN_PASSWORD is required to seed the admin user")
	}
	hash, err := password.Hash(seed.Password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := entity.User{
		Name:               "Administrator",
		Email:              email,
		PasswordHash:       hash,
		Role:               policy.RoleAdmin,
		IsApproved:         true,
		EmailNotifications: true,
	}
	if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	log.Info("admin user seeded", zap.String("email", email))
	return nil
}
