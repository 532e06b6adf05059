package main

import (
	"context"
	"log"
	"time"

	"taxdesk/internal/models"
	"taxdesk/internal/repository"
	"taxdesk/pkg/auth"
	"taxdesk/pkg/config"
	"taxdesk/pkg/logger"
	"taxdesk/pkg/postgres"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS "uuid-ossp";

CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    first_name VARCHAR(100) NOT NULL,
    last_name VARCHAR(100) NOT NULL,
    email VARCHAR(255) NOT NULL UNIQUE,
    password VARCHAR(255) NOT NULL,
    last_logged_in_at TIMESTAMPTZ,
    current_logged_in_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    deleted_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS tax_documents (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    user_id UUID NOT NULL REFERENCES users(id),
    year INTEGER NOT NULL,
    document_type VARCHAR(50) NOT NULL,
    file_name VARCHAR(255) NOT NULL,
    file_path VARCHAR(512) NOT NULL,
    file_size BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    deleted_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_tax_documents_user_id ON tax_documents(user_id);

CREATE TABLE IF NOT EXISTS tax_data (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    user_id UUID NOT NULL REFERENCES users(id),
    year INTEGER NOT NULL,
    data JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT tax_data_user_year_key UNIQUE (user_id, year)
);
`

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	appLogger := logger.Get()

	// Connect to database
	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	appLogger.Info("Starting database seeding...")

	if err := applySchema(ctx, db); err != nil {
		appLogger.Fatal("Failed to apply schema", zap.Error(err))
	}
	appLogger.Info("Schema applied")

	if err := seedDemoUser(ctx, db, appLogger); err != nil {
		appLogger.Fatal("Failed to seed demo user", zap.Error(err))
	}

	appLogger.Info("Database seeding completed successfully!")
}

func applySchema(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, schema)
	return err
}

// seedDemoUser creates the demo account if it does not exist yet. Safe to run
// repeatedly.
func seedDemoUser(ctx context.Context, db *pgxpool.Pool, appLogger *zap.Logger) error {
	userRepo := repository.NewUserRepository(db, appLogger)

	const demoEmail = "demo@taxdesk.local"

	exists, err := userRepo.EmailExists(ctx, demoEmail)
	if err != nil {
		return err
	}
	if exists {
		appLogger.Info("Demo user already exists, skipping", zap.String("email", demoEmail))
		return nil
	}

	hashed, err := auth.HashPassword("demo1234")
	if err != nil {
		return err
	}

	now := time.Now()
	user := &models.User{
		ID:        uuid.New(),
		FirstName: "Demo",
		LastName:  "User",
		Email:     demoEmail,
		Password:  hashed,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := userRepo.Create(ctx, user); err != nil {
		return err
	}

	appLogger.Info("Demo user created", zap.String("email", demoEmail))
	return nil
}
