package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/types"
	"github.com/openshelf/openshelf-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	log.Info("Loading environment variables...")
	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "openshelf", log)
	log.Debug("Environment variables loaded")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	log.Info("Connecting to Postgres...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		log.Error("Failed to enable uuid-ossp extension", "error", err)
		return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}
	log.Info("uuid-ossp extension enabled")

	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.Profile{},
		&types.Author{},
		&types.Category{},
		&types.Book{},
		&types.Member{},
		&types.Transaction{},
		&types.Reservation{},
		&types.Fine{},
		&types.ActivityEvent{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}

	s.log.Info("Configuring constraints for postgres tables...")
	constraints := []string{
		// Counter bounds enforced at the storage layer too, so a bug in the
		// ledgers can never persist an impossible state.
		`ALTER TABLE "book" DROP CONSTRAINT IF EXISTS "chk_book_available_bounds";
		 ALTER TABLE "book" ADD CONSTRAINT "chk_book_available_bounds"
		 CHECK (available_copies >= 0 AND available_copies <= total_copies)`,
		`ALTER TABLE "member" DROP CONSTRAINT IF EXISTS "chk_member_issued_bounds";
		 ALTER TABLE "member" ADD CONSTRAINT "chk_member_issued_bounds"
		 CHECK (current_books_issued >= 0 AND current_books_issued <= max_books_allowed)`,
		`ALTER TABLE "member" DROP CONSTRAINT IF EXISTS "chk_member_fine_nonnegative";
		 ALTER TABLE "member" ADD CONSTRAINT "chk_member_fine_nonnegative"
		 CHECK (fine_amount >= 0)`,
		`ALTER TABLE "fine" DROP CONSTRAINT IF EXISTS "chk_fine_amount_positive";
		 ALTER TABLE "fine" ADD CONSTRAINT "chk_fine_amount_positive"
		 CHECK (amount > 0)`,
	}
	for _, ddl := range constraints {
		if err := s.db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("failed to add table constraint: %w", err)
		}
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
