package gcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/certification-backend/internal/platform/ctxutil"
	"github.com/yungbote/certification-backend/internal/platform/envutil"
	"github.com/yungbote/certification-backend/internal/platform/logger"
)

// ErrObjectNotFound is returned by Download and Attrs for a missing key.
var ErrObjectNotFound = errors.New("object not found")

// BucketService stores attachment blobs in a single bucket.
type BucketService interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Attrs(ctx context.Context, key string) (*ObjectAttrs, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

type ObjectAttrs struct {
	Size        int64
	ContentType string
	Updated     time.Time
	ETag        string
}

type BucketConfig struct {
	Name          string
	CDNDomain     string
	PublicBaseURL string
	// Timeout bounds every write, delete and metadata call.
	Timeout time.Duration
	Storage ObjectStorageConfig
}

func BucketConfigFromEnv() (BucketConfig, error) {
	storageCfg, err := ResolveObjectStorageConfigFromEnv()
	if err != nil {
		return BucketConfig{}, fmt.Errorf("resolve object storage config: %w", err)
	}
	publicBase, err := resolveObjectStoragePublicBaseURL(storageCfg)
	if err != nil {
		return BucketConfig{}, err
	}
	cfg := BucketConfig{
		Name:          envutil.String("ATTACHMENT_GCS_BUCKET_NAME", ""),
		CDNDomain:     envutil.String("ATTACHMENT_CDN_DOMAIN", ""),
		PublicBaseURL: publicBase,
		Timeout:       envutil.Duration("STORAGE_TIMEOUT", 30*time.Second),
		Storage:       storageCfg,
	}
	if cfg.Name == "" {
		return cfg, fmt.Errorf("missing env var ATTACHMENT_GCS_BUCKET_NAME")
	}
	return cfg, nil
}

type bucketService struct {
	log           *logger.Logger
	client        *storage.Client
	httpClient    *http.Client
	cfg           BucketConfig
	emulatorHost  string
	publicBaseURL string
}

func NewBucketService(log *logger.Logger) (BucketService, error) {
	cfg, err := BucketConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewBucketServiceWithConfig(log, cfg)
}

func NewBucketServiceWithConfig(log *logger.Logger, cfg BucketConfig) (BucketService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, fmt.Errorf("bucket name required")
	}
	if err := ValidateObjectStorageConfig(cfg.Storage); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client, err := newStorageClientForMode(context.Background(), cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	bs := &bucketService{
		log:           log.With("service", "BucketService"),
		client:        client,
		httpClient:    &http.Client{},
		cfg:           cfg,
		emulatorHost:  trimBase(cfg.Storage.EmulatorHost),
		publicBaseURL: trimBase(cfg.PublicBaseURL),
	}
	bs.log.Info(
		"Object storage initialized",
		"mode", cfg.Storage.Mode,
		"mode_source", cfg.Storage.ModeSource(),
		"bucket", cfg.Name,
		"public_base_url", bs.publicBaseURL,
		"timeout", cfg.Timeout.String(),
	)
	return bs, nil
}

func newStorageClientForMode(ctx context.Context, cfg ObjectStorageConfig) (*storage.Client, error) {
	switch cfg.Mode {
	case ObjectStorageModeGCS:
		opts := append(ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case ObjectStorageModeGCSEmulator:
		// The storage client reads the emulator endpoint from the environment.
		_ = os.Setenv("STORAGE_EMULATOR_HOST", trimBase(cfg.EmulatorHost))
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, &ObjectStorageConfigError{Code: ObjectStorageConfigErrorInvalidMode, Mode: string(cfg.Mode)}
	}
}

func resolveObjectStoragePublicBaseURL(cfg ObjectStorageConfig) (string, error) {
	raw := envutil.String("OBJECT_STORAGE_PUBLIC_BASE_URL", "")
	if raw != "" {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return "", fmt.Errorf("invalid OBJECT_STORAGE_PUBLIC_BASE_URL=%q; expected absolute URL like http://localhost:4443", raw)
		}
		return trimBase(raw), nil
	}
	if cfg.IsEmulatorMode() {
		return trimBase(cfg.EmulatorHost), nil
	}
	return "", nil
}

func (bs *bucketService) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	key = normalizeKey(key)
	if key == "" {
		return fmt.Errorf("object key required")
	}
	if body == nil {
		return fmt.Errorf("object body required")
	}
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), bs.cfg.Timeout)
	defer cancel()

	w := bs.client.Bucket(bs.cfg.Name).Object(key).NewWriter(ctx)
	if ct := strings.TrimSpace(contentType); ct != "" {
		w.ContentType = ct
	} else if ct := contentTypeForKey(key); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close object writer %q: %w", key, err)
	}
	return nil
}

func (bs *bucketService) Delete(ctx context.Context, key string) error {
	key = normalizeKey(key)
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), bs.cfg.Timeout)
	defer cancel()
	err := bs.client.Bucket(bs.cfg.Name).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete object %q in bucket %q: %w", key, bs.cfg.Name, err)
	}
	return nil
}

// Download returns a reader whose deadline is released on Close.
func (bs *bucketService) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	key = normalizeKey(key)
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), 2*time.Minute)
	if bs.isEmulatorMode() {
		resp, err := bs.emulatorGet(ctx, bs.emulatorObjectURL(key, true))
		if err != nil {
			cancel()
			return nil, err
		}
		return &readCloserWithCancel{ReadCloser: resp.Body, cancel: cancel}, nil
	}
	r, err := bs.client.Bucket(bs.cfg.Name).Object(key).NewReader(ctx)
	if err != nil {
		cancel()
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("open object reader %q: %w", key, err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}

func (bs *bucketService) Attrs(ctx context.Context, key string) (*ObjectAttrs, error) {
	key = normalizeKey(key)
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), bs.cfg.Timeout)
	defer cancel()

	if bs.isEmulatorMode() {
		resp, err := bs.emulatorGet(ctx, bs.emulatorObjectURL(key, false))
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		return decodeEmulatorAttrs(resp.Body)
	}
	attrs, err := bs.client.Bucket(bs.cfg.Name).Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch object attrs %q: %w", key, err)
	}
	return &ObjectAttrs{
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		Updated:     attrs.Updated,
		ETag:        attrs.Etag,
	}, nil
}

func (bs *bucketService) PublicURL(key string) string {
	key = normalizeKey(key)
	if cdn := strings.TrimSpace(bs.cfg.CDNDomain); cdn != "" {
		return fmt.Sprintf("https://%s/%s", cdn, key)
	}
	if bs.cfg.Storage.IsEmulatorMode() {
		base := bs.publicBaseURL
		if base == "" {
			base = bs.emulatorHost
		}
		if base != "" {
			return mediaURL(base, bs.cfg.Name, key)
		}
	}
	if bs.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", bs.publicBaseURL, bs.cfg.Name, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bs.cfg.Name, key)
}

func (bs *bucketService) isEmulatorMode() bool {
	return bs.cfg.Storage.IsEmulatorMode() && bs.emulatorHost != ""
}

func (bs *bucketService) emulatorObjectURL(key string, media bool) string {
	if media {
		return mediaURL(bs.emulatorHost, bs.cfg.Name, key)
	}
	return fmt.Sprintf("%s/storage/v1/b/%s/o/%s", bs.emulatorHost, url.PathEscape(bs.cfg.Name), url.PathEscape(key))
}

// emulatorGet reads through the emulator's JSON API; the storage client's
// reader does not follow the emulator host for media downloads.
func (bs *bucketService) emulatorGet(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build emulator request: %w", err)
	}
	resp, err := bs.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("emulator request: %w", err)
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
		return resp, nil
	case http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, ErrObjectNotFound
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("emulator request failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

func decodeEmulatorAttrs(r io.Reader) (*ObjectAttrs, error) {
	var payload struct {
		Size        string `json:"size"`
		ContentType string `json:"contentType"`
		Updated     string `json:"updated"`
		ETag        string `json:"etag"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode emulator attrs: %w", err)
	}
	size, _ := strconv.ParseInt(strings.TrimSpace(payload.Size), 10, 64)
	out := &ObjectAttrs{Size: size, ContentType: payload.ContentType, ETag: payload.ETag}
	if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(payload.Updated)); err == nil {
		out.Updated = ts
	}
	return out, nil
}

type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}

func mediaURL(base, bucket, key string) string {
	return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", base, url.PathEscape(bucket), url.PathEscape(key))
}

func normalizeKey(key string) string {
	return strings.TrimLeft(strings.TrimSpace(key), "/")
}

func trimBase(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "/")
}

// contentTypeForKey is the fallback when the caller did not sniff a type.
func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.HasSuffix(s, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".webp"):
		return "image/webp"
	case strings.HasSuffix(s, ".doc"):
		return "application/msword"
	case strings.HasSuffix(s, ".docx"):
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case strings.HasSuffix(s, ".txt"):
		return "text/plain; charset=utf-8"
	case strings.HasSuffix(s, ".zip"):
		return "application/zip"
	default:
		return ""
	}
}
