package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/certification-backend/internal/data/repos"
	"github.com/yungbote/certification-backend/internal/platform/logger"
)

type Repos struct {
	Requests     repos.RequestRepo
	Attachments  repos.AttachmentRepo
	Evaluations  repos.EvaluationRepo
	Badges       repos.BadgeRepo
	Transitions  repos.TransitionRepo
	Competencies repos.CompetencyRepo
	Directory    repos.DirectoryRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Requests:     repos.NewRequestRepo(db, log),
		Attachments:  repos.NewAttachmentRepo(db, log),
		Evaluations:  repos.NewEvaluationRepo(db, log),
		Badges:       repos.NewBadgeRepo(db, log),
		Transitions:  repos.NewTransitionRepo(db, log),
		Competencies: repos.NewCompetencyRepo(db, log),
		Directory:    repos.NewDirectoryRepo(db, log),
	}
}
