package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/certification-backend/internal/domain/certification"
	"github.com/yungbote/certification-backend/internal/domain/identity"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// =========================
		// Directory
		// =========================
		&identity.User{},
		&identity.RoleGrant{},

		// =========================
		// Competencies
		// =========================
		&certification.CompetencyReference{},
		&certification.Competency{},

		// =========================
		// Certification workflow
		// =========================
		&certification.Request{},
		&certification.Attachment{},
		&certification.Evaluation{},
		&certification.Transition{},
		&certification.Badge{},
	)
}

// EnsureCertificationIndexes creates the indexes gorm tags cannot express.
// The statements are portable between Postgres and SQLite.
func EnsureCertificationIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_cert_badge_active_holder_competency
		ON certification_badge (holder_id, competency_id)
		WHERE superseded_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_cert_badge_active_holder_competency: %w", err)
	}

	// Queue listing: priority desc, oldest first.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_cert_request_status_priority_created
		ON certification_request (status, priority DESC, created_at);
	`).Error; err != nil {
		return fmt.Errorf("create idx_cert_request_status_priority_created: %w", err)
	}

	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_cert_transition_request_created
		ON certification_transition (request_id, created_at);
	`).Error; err != nil {
		return fmt.Errorf("create idx_cert_transition_request_created: %w", err)
	}

	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_cert_attachment_storage_key
		ON certification_attachment (storage_key);
	`).Error; err != nil {
		return fmt.Errorf("create idx_cert_attachment_storage_key: %w", err)
	}
	return nil
}

// Migrate runs table and index migration in order.
func Migrate(db *gorm.DB) error {
	if err := AutoMigrateAll(db); err != nil {
		return err
	}
	return EnsureCertificationIndexes(db)
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureCertificationIndexes(s.db); err != nil {
		s.log.Error("Certification index migration failed", "error", err)
		return err
	}
	return nil
}
