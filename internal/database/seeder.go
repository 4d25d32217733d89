// server/internal/database/seeder.go
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecotrack-api-server/config"
	"ecotrack-api-server/internal/auth"
	"ecotrack-api-server/internal/models"
	"ecotrack-api-server/internal/store"

	"github.com/rs/zerolog/log"
)

// Seed tạo tài khoản admin và bảng giá mặc định nếu chưa có.
func Seed(ctx context.Context, st store.Store, cfg config.SeedConfig) error {
	if err := SeedAdmin(ctx, st.Users(), cfg); err != nil {
		return err
	}
	return SeedSettings(ctx, st.Settings())
}

func SeedAdmin(ctx context.Context, users store.UserRepository, cfg config.SeedConfig) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		log.Warn().Msg("seed.adminEmail or seed.adminPassword not set, admin seeding skipped")
		return nil
	}

	// Kiểm tra xem admin đã tồn tại chưa
	_, err := users.GetByEmail(ctx, cfg.AdminEmail)
	if err == nil {
		log.Info().Str("email", cfg.AdminEmail).Msg("admin already exists, seeding skipped")
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("look up admin: %w", err)
	}

	hashedPassword, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	now := time.Now()
	admin := &models.User{
		UserID:    models.NewBusinessID("USR"),
		Name:      "Administrator",
		Email:     cfg.AdminEmail,
		Password:  hashedPassword,
		Role:      models.RoleAdmin,
		Status:    models.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := users.Create(ctx, admin); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	log.Info().Str("email", admin.Email).Str("userID", admin.UserID).Msg("admin seeded")
	return nil
}

func SeedSettings(ctx context.Context, repo store.SettingsRepository) error {
	_, err := repo.Get(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load settings: %w", err)
	}

	settings := models.DefaultSettings()
	settings.UpdatedAt = time.Now()
	if err := repo.Save(ctx, &settings); err != nil {
		return fmt.Errorf("save default settings: %w", err)
	}
	log.Info().Msg("default settings seeded")
	return nil
}
