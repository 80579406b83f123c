package app

import (
	httpH "github.com/yungbote/certification-backend/internal/http/handlers"
	"github.com/yungbote/certification-backend/internal/platform/logger"
	"github.com/yungbote/certification-backend/internal/realtime"
)

type Handlers struct {
	Health        *httpH.HealthHandler
	Certification *httpH.CertificationHandler
	Attachment    *httpH.AttachmentHandler
	Badge         *httpH.BadgeHandler
	Catalog       *httpH.CatalogHandler
	Events        *httpH.EventsHandler
}

func wireHandlers(log *logger.Logger, services Services, hub *realtime.Hub) (Handlers, error) {
	log.Info("Wiring handlers...")
	if err := httpH.RegisterValidators(); err != nil {
		return Handlers{}, err
	}
	return Handlers{
		Health:        httpH.NewHealthHandler(),
		Certification: httpH.NewCertificationHandler(log, services.Certification, services.Queries),
		Attachment:    httpH.NewAttachmentHandler(log, services.Certification),
		Badge:         httpH.NewBadgeHandler(log, services.Certification, services.Queries),
		Catalog:       httpH.NewCatalogHandler(services.Queries),
		Events:        httpH.NewEventsHandler(log, hub, services.Identity),
	}, nil
}
