package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/certification-backend/internal/data/repos/certification"
	"github.com/yungbote/certification-backend/internal/data/repos/directory"
	"github.com/yungbote/certification-backend/internal/platform/logger"
)

type Page = certification.Page

type RequestRepo = certification.RequestRepo
type AttachmentRepo = certification.AttachmentRepo
type EvaluationRepo = certification.EvaluationRepo
type BadgeRepo = certification.BadgeRepo
type TransitionRepo = certification.TransitionRepo
type CompetencyRepo = certification.CompetencyRepo

type DirectoryRepo = directory.DirectoryRepo

func NewRequestRepo(db *gorm.DB, baseLog *logger.Logger) RequestRepo {
	return certification.NewRequestRepo(db, baseLog)
}
func NewAttachmentRepo(db *gorm.DB, baseLog *logger.Logger) AttachmentRepo {
	return certification.NewAttachmentRepo(db, baseLog)
}
func NewEvaluationRepo(db *gorm.DB, baseLog *logger.Logger) EvaluationRepo {
	return certification.NewEvaluationRepo(db, baseLog)
}
func NewBadgeRepo(db *gorm.DB, baseLog *logger.Logger) BadgeRepo {
	return certification.NewBadgeRepo(db, baseLog)
}
func NewTransitionRepo(db *gorm.DB, baseLog *logger.Logger) TransitionRepo {
	return certification.NewTransitionRepo(db, baseLog)
}
func NewCompetencyRepo(db *gorm.DB, baseLog *logger.Logger) CompetencyRepo {
	return certification.NewCompetencyRepo(db, baseLog)
}

func NewDirectoryRepo(db *gorm.DB, baseLog *logger.Logger) DirectoryRepo {
	return directory.NewDirectoryRepo(db, baseLog)
}
