package app

import (
	"errors"
	"fmt"

	"github.com/yungbote/certification-backend/internal/platform/gcp"
	"github.com/yungbote/certification-backend/internal/platform/logger"
)

var newBucketServiceWithConfig = gcp.NewBucketServiceWithConfig

type BlobStoreBootstrapErrorCode string

const (
	BlobStoreBootstrapErrorInvalidConfig       BlobStoreBootstrapErrorCode = "invalid_config"
	BlobStoreBootstrapErrorInvalidMode         BlobStoreBootstrapErrorCode = "invalid_mode"
	BlobStoreBootstrapErrorMissingEmulatorHost BlobStoreBootstrapErrorCode = "missing_emulator_host"
	BlobStoreBootstrapErrorInvalidEmulatorHost BlobStoreBootstrapErrorCode = "invalid_emulator_host"
	BlobStoreBootstrapErrorConnectFailed       BlobStoreBootstrapErrorCode = "connect_failed"
)

// BlobStoreBootstrapError reports why the attachment bucket could not be
// opened at startup.
type BlobStoreBootstrapError struct {
	Code   BlobStoreBootstrapErrorCode
	Bucket string
	Mode   string
	Cause  error
}

func (e *BlobStoreBootstrapError) Error() string {
	if e == nil {
		return "attachment store bootstrap failed"
	}
	return fmt.Sprintf("attachment store bootstrap failed (code=%s bucket=%q mode=%q): %v", e.Code, e.Bucket, e.Mode, e.Cause)
}

func (e *BlobStoreBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveBlobStore opens the attachment bucket described by the environment.
func resolveBlobStore(log *logger.Logger, cfg Config) (gcp.BucketService, error) {
	bucketCfg, err := gcp.BucketConfigFromEnv()
	if err != nil {
		classified := classifyBlobStoreBootstrapError(bucketCfg, err)
		log.Error("Attachment store configuration invalid", "error", classified)
		return nil, classified
	}
	if cfg.UploadTimeout > 0 {
		bucketCfg.Timeout = cfg.UploadTimeout
	}
	log.Info(
		"Opening attachment store",
		"bucket", bucketCfg.Name,
		"mode", bucketCfg.Storage.Mode,
		"mode_source", bucketCfg.Storage.ModeSource(),
	)
	bucket, err := newBucketServiceWithConfig(log, bucketCfg)
	if err != nil {
		classified := classifyBlobStoreBootstrapError(bucketCfg, err)
		log.Error("Attachment store bootstrap failed", "bucket", bucketCfg.Name, "error", classified)
		return nil, classified
	}
	return bucket, nil
}

func classifyBlobStoreBootstrapError(bucketCfg gcp.BucketConfig, err error) error {
	out := &BlobStoreBootstrapError{
		Code:   BlobStoreBootstrapErrorConnectFailed,
		Bucket: bucketCfg.Name,
		Mode:   string(bucketCfg.Storage.Mode),
		Cause:  err,
	}
	var cfgErr *gcp.ObjectStorageConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case gcp.ObjectStorageConfigErrorInvalidMode:
			out.Code = BlobStoreBootstrapErrorInvalidMode
		case gcp.ObjectStorageConfigErrorMissingEmulatorHost:
			out.Code = BlobStoreBootstrapErrorMissingEmulatorHost
		case gcp.ObjectStorageConfigErrorInvalidEmulatorHost:
			out.Code = BlobStoreBootstrapErrorInvalidEmulatorHost
		}
		if out.Mode == "" {
			out.Mode = cfgErr.Mode
		}
		return out
	}
	if bucketCfg.Name == "" {
		out.Code = BlobStoreBootstrapErrorInvalidConfig
	}
	return out
}
