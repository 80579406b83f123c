package realtime

import (
	"github.com/google/uuid"

	"github.com/yungbote/certification-backend/internal/platform/logger"
)

type Client struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Channels map[string]bool
	Outbound chan Message
	done     chan struct{}
	log      *logger.Logger
}
