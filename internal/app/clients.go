package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/certification-backend/internal/platform/envutil"
	"github.com/yungbote/certification-backend/internal/platform/gcp"
	"github.com/yungbote/certification-backend/internal/platform/logger"
	"github.com/yungbote/certification-backend/internal/platform/sendgrid"
	"github.com/yungbote/certification-backend/internal/realtime/bus"
)

type Clients struct {
	Redis goredis.UniversalClient
	Bus   bus.Bus
	Blobs gcp.BucketService
	// Mail is nil when SENDGRID_API_KEY is unset; notifications then go to
	// the realtime bus only.
	Mail sendgrid.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Redis
	if envutil.String("REDIS_ADDR", "") != "" {
		rdb, err := bus.NewRedisClientFromEnv(ctx)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		b, err := bus.NewRedisBus(log, rdb)
		if err != nil {
			_ = rdb.Close()
			return Clients{}, fmt.Errorf("init redis realtime bus: %w", err)
		}
		out.Redis = rdb
		out.Bus = b
	} else {
		log.Warn("REDIS_ADDR not set; realtime events stay in this process")
		out.Bus = bus.NewLocalBus()
	}

	// Gcs
	blobs, err := resolveBlobStore(log, cfg)
	if err != nil {
		out.close()
		return Clients{}, fmt.Errorf("init attachment store: %w", err)
	}
	out.Blobs = blobs

	// SendGrid
	if envutil.String("SENDGRID_API_KEY", "") != "" {
		mail, err := sendgrid.NewFromEnv(log)
		if err != nil {
			out.close()
			return Clients{}, fmt.Errorf("init sendgrid: %w", err)
		}
		out.Mail = mail
	} else {
		log.Warn("SENDGRID_API_KEY not set; email notifications disabled")
	}
	return out, nil
}

func (c Clients) close() {
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
