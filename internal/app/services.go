package app

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/certification-backend/internal/catalog"
	"github.com/yungbote/certification-backend/internal/data/aggregates"
	"github.com/yungbote/certification-backend/internal/domain/certification"
	"github.com/yungbote/certification-backend/internal/jobs/badgeexpiry"
	"github.com/yungbote/certification-backend/internal/observability"
	"github.com/yungbote/certification-backend/internal/platform/logger"
	"github.com/yungbote/certification-backend/internal/services"
)

type Services struct {
	Auth          services.AuthService
	Identity      services.IdentityProvider
	Attachments   services.AttachmentStore
	Notifications *services.Dispatcher
	Certification services.CertificationService
	Queries       services.CertificationQueries

	BadgeExpiry *badgeexpiry.Job
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	domains, err := catalog.Load(log)
	if err != nil {
		return Services{}, fmt.Errorf("load domain catalog: %w", err)
	}
	policy := certification.Policy{RHFastPath: cfg.RHFastPath}
	clock := func() time.Time { return time.Now().UTC() }

	agg := aggregates.NewCertificationAggregate(aggregates.CertificationAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:    db,
			Log:   log,
			Hooks: aggregates.NewObservabilityHooks(metrics),
			Clock: clock,
		},
		Requests:     reposet.Requests,
		Attachments:  reposet.Attachments,
		Evaluations:  reposet.Evaluations,
		Badges:       reposet.Badges,
		Transitions:  reposet.Transitions,
		Competencies: reposet.Competencies,
		Catalog:      domains,
		Policy:       policy,
	})

	identity := services.NewIdentityProvider(log, reposet.Directory, cfg.IdentityTimeout, metrics)
	attachments := services.NewAttachmentStore(log, clients.Blobs, services.AttachmentStoreConfig{
		MaxBytes:    cfg.MaxAttachmentBytes,
		MaxFiles:    cfg.MaxAttachments,
		Timeout:     cfg.UploadTimeout,
		Parallelism: cfg.UploadParallelism,
	}, metrics)
	dispatcher := services.NewDispatcher(log, clients.Bus, clients.Mail, identity, metrics, services.NotifierConfig{
		QueueSize: cfg.NotifyQueueSize,
		Workers:   cfg.NotifyWorkers,
		Timeout:   cfg.NotifyTimeout,
		AppURL:    cfg.AppURL,
	})

	return Services{
		Auth:          services.NewAuthService(log, cfg.JWTSecretKey, cfg.JWTIssuer, cfg.AccessTokenTTL),
		Identity:      identity,
		Attachments:   attachments,
		Notifications: dispatcher,
		Certification: services.NewCertificationService(log, agg, reposet.Requests, identity, attachments, dispatcher),
		Queries: services.NewCertificationQueries(log, services.QueryDeps{
			Requests:    reposet.Requests,
			Attachments: reposet.Attachments,
			Evaluations: reposet.Evaluations,
			Badges:      reposet.Badges,
			Transitions: reposet.Transitions,
			Catalog:     domains,
			Identity:    identity,
			Policy:      policy,
			Clock:       clock,
		}),
		BadgeExpiry: badgeexpiry.New(log, reposet.Badges, dispatcher, metrics, badgeexpiry.Config{
			Schedule:   cfg.BadgeExpiryCron,
			NoticeDays: cfg.BadgeExpiryNoticeDays,
		}),
	}, nil
}
