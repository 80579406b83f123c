package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	domainagg "github.com/yungbote/certification-backend/internal/domain/aggregates"
	"github.com/yungbote/certification-backend/internal/domain/certification"
	"github.com/yungbote/certification-backend/internal/observability"
	"github.com/yungbote/certification-backend/internal/platform/ctxutil"
	"github.com/yungbote/certification-backend/internal/platform/logger"
)

// BlobStore is the slice of the bucket service attachments need.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) error
	Delete(ctx context.Context, key string) error
}

// Upload is one incoming file. Open is called exactly once.
type Upload struct {
	Kind         string
	OriginalName string
	DeclaredSize int64
	Open         func() (io.ReadCloser, error)
}

type AttachmentStore interface {
	// Store writes every upload under requests/<requestID>/ and returns the
	// stored descriptors in input order. Nothing is left behind on failure.
	Store(ctx context.Context, requestID uuid.UUID, uploads []Upload) ([]certification.StoredFile, error)
	// Discard removes blobs whose database write did not commit.
	Discard(ctx context.Context, files []certification.StoredFile)
}

type AttachmentStoreConfig struct {
	MaxBytes    int64
	MaxFiles    int
	Timeout     time.Duration
	Parallelism int
}

type attachmentStore struct {
	log     *logger.Logger
	blobs   BlobStore
	cfg     AttachmentStoreConfig
	metrics *observability.Metrics
}

const sniffLen = 512

var errTooLarge = errors.New("attachment too large")

func NewAttachmentStore(log *logger.Logger, blobs BlobStore, cfg AttachmentStoreConfig, metrics *observability.Metrics) AttachmentStore {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	return &attachmentStore{
		log:     log.With("service", "AttachmentStore"),
		blobs:   blobs,
		cfg:     cfg,
		metrics: metrics,
	}
}

func (s *attachmentStore) Store(ctx context.Context, requestID uuid.UUID, uploads []Upload) ([]certification.StoredFile, error) {
	const op = "Attachments.Store"
	if len(uploads) == 0 {
		return nil, nil
	}
	if len(uploads) > s.cfg.MaxFiles {
		return nil, domainagg.NewError(domainagg.CodeInvalidInput, op,
			fmt.Sprintf("at most %d attachments can be sent at once, got %d", s.cfg.MaxFiles, len(uploads)), nil)
	}
	for _, u := range uploads {
		if u.DeclaredSize > s.cfg.MaxBytes {
			return nil, s.tooLarge(op, u.OriginalName)
		}
		if u.Open == nil {
			return nil, domainagg.NewError(domainagg.CodeInvalidInput, op, "attachment content is missing", nil)
		}
	}

	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), s.cfg.Timeout)
	defer cancel()

	out := make([]certification.StoredFile, len(uploads))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for i := range uploads {
		i := i
		g.Go(func() error {
			f, err := s.put(gctx, requestID, uploads[i])
			if err != nil {
				return err
			}
			out[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		stored := make([]certification.StoredFile, 0, len(out))
		for _, f := range out {
			if f.StorageKey != "" {
				stored = append(stored, f)
			}
		}
		s.Discard(context.WithoutCancel(ctx), stored)
		return nil, s.mapStoreError(op, err)
	}
	return out, nil
}

func (s *attachmentStore) put(ctx context.Context, requestID uuid.UUID, u Upload) (certification.StoredFile, error) {
	start := time.Now()
	rc, err := u.Open()
	if err != nil {
		return certification.StoredFile{}, fmt.Errorf("open %q: %w", u.OriginalName, err)
	}
	defer rc.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(rc, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return certification.StoredFile{}, fmt.Errorf("read %q: %w", u.OriginalName, err)
	}
	head = head[:n]
	if n == 0 {
		return certification.StoredFile{}, domainagg.NewError(domainagg.CodeInvalidInput, "Attachments.Store",
			fmt.Sprintf("attachment %q is empty", u.OriginalName), nil)
	}
	ext := strings.ToLower(filepath.Ext(u.OriginalName))
	mimeType, ok := acceptedMimeType(http.DetectContentType(head), ext)
	if !ok {
		return certification.StoredFile{}, domainagg.NewError(domainagg.CodeInvalidInput, "Attachments.Store",
			fmt.Sprintf("attachment %q has an unsupported type; send PDF, image, text or office documents", u.OriginalName), nil)
	}

	key := fmt.Sprintf("requests/%s/%s%s", requestID, uuid.New(), ext)
	body := &cappedReader{r: io.MultiReader(bytes.NewReader(head), rc), remaining: s.cfg.MaxBytes}
	if err := s.blobs.Put(ctx, key, mimeType, body); err != nil {
		s.metrics.ObserveAttachmentUpload("failure", body.read, time.Since(start))
		if errors.Is(err, errTooLarge) {
			_ = s.blobs.Delete(context.WithoutCancel(ctx), key)
			return certification.StoredFile{}, s.tooLarge("Attachments.Store", u.OriginalName)
		}
		return certification.StoredFile{}, fmt.Errorf("upload %q: %w", u.OriginalName, err)
	}
	s.metrics.ObserveAttachmentUpload("success", body.read, time.Since(start))
	s.log.Debug("Attachment stored", "request_id", requestID, "storage_key", key, "size_bytes", body.read, "mime_type", mimeType)
	return certification.StoredFile{
		Kind:         certification.ParseAttachmentKind(u.Kind),
		MimeType:     mimeType,
		SizeBytes:    body.read,
		OriginalName: sanitizeFileName(u.OriginalName),
		StorageKey:   key,
	}, nil
}

func (s *attachmentStore) Discard(ctx context.Context, files []certification.StoredFile) {
	for _, f := range files {
		if f.StorageKey == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, f.StorageKey); err != nil {
			s.log.Warn("Failed to discard orphaned attachment", "storage_key", f.StorageKey, "error", err)
		}
	}
}

func (s *attachmentStore) tooLarge(op, name string) error {
	return domainagg.NewError(domainagg.CodeInvalidInput, op,
		fmt.Sprintf("attachment %q exceeds the %d MiB limit", name, s.cfg.MaxBytes>>20), nil)
}

func (s *attachmentStore) mapStoreError(op string, err error) error {
	var typed *domainagg.Error
	if errors.As(err, &typed) {
		return typed
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domainagg.NewError(domainagg.CodeTransient, op, "attachment storage timed out, retry shortly", err)
	}
	s.log.Error("Attachment upload failed", "error", err)
	return domainagg.NewError(domainagg.CodeTransient, op, "attachment storage is unavailable, retry shortly", err)
}

// acceptedMimeType maps a sniffed type to the stored one. Office documents
// sniff as zip or octet-stream so the extension decides for them.
func acceptedMimeType(sniffed, ext string) (string, bool) {
	base, _, _ := mime.ParseMediaType(sniffed)
	switch {
	case base == "application/pdf", strings.HasPrefix(base, "image/"):
		return base, true
	case base == "text/plain":
		return sniffed, true
	case base == "application/zip" || base == "application/octet-stream":
		switch ext {
		case ".doc", ".docx", ".odt", ".xls", ".xlsx", ".ppt", ".pptx":
			if t := mime.TypeByExtension(ext); t != "" {
				return t, true
			}
			return "application/octet-stream", true
		case ".zip":
			return "application/zip", base == "application/zip"
		}
	}
	return "", false
}

func sanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	if len(name) > 255 {
		name = name[:255]
	}
	return name
}

// cappedReader fails with errTooLarge once more than remaining bytes are read.
type cappedReader struct {
	r         io.Reader
	remaining int64
	read      int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += int64(n)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return n, errTooLarge
	}
	return n, err
}
