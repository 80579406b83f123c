package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/certification-backend/internal/domain/aggregates"
	"github.com/yungbote/certification-backend/internal/domain/certification"
	"github.com/yungbote/certification-backend/internal/platform/logger"
)

func TestAttachmentStoreStoresInInputOrder(t *testing.T) {
	blobs := newMemBlobs()
	store := NewAttachmentStore(logger.NewNop(), blobs, AttachmentStoreConfig{}, nil)
	requestID := uuid.New()

	files, err := store.Store(context.Background(), requestID, []Upload{
		pdfUpload("cert.pdf"),
		bytesUpload("reference", "notes.txt", []byte("worked on the billing platform for three years")),
		bytesUpload("", "../../etc/diploma.PDF", pdfBytes),
	})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("files: want=3 got=%d", len(files))
	}
	prefix := "requests/" + requestID.String() + "/"
	for i, f := range files {
		if !strings.HasPrefix(f.StorageKey, prefix) {
			t.Fatalf("file %d key: want prefix %q got=%q", i, prefix, f.StorageKey)
		}
	}
	if files[0].Kind != certification.AttachmentCertificate || files[0].MimeType != "application/pdf" {
		t.Fatalf("file 0: %+v", files[0])
	}
	if files[0].SizeBytes != int64(len(pdfBytes)) {
		t.Fatalf("file 0 size: want=%d got=%d", len(pdfBytes), files[0].SizeBytes)
	}
	if !strings.HasPrefix(files[1].MimeType, "text/plain") || files[1].Kind != certification.AttachmentReference {
		t.Fatalf("file 1: %+v", files[1])
	}
	if files[2].OriginalName != "diploma.PDF" || files[2].Kind != certification.AttachmentOther {
		t.Fatalf("file 2: %+v", files[2])
	}
	if !strings.HasSuffix(files[2].StorageKey, ".pdf") {
		t.Fatalf("file 2 key: want .pdf suffix got=%q", files[2].StorageKey)
	}
	if blobs.count() != 3 {
		t.Fatalf("stored blobs: want=3 got=%d", blobs.count())
	}
}

func TestAttachmentStoreRejections(t *testing.T) {
	cases := []struct {
		name    string
		cfg     AttachmentStoreConfig
		uploads []Upload
	}{
		{
			name:    "unsupported type",
			uploads: []Upload{bytesUpload("other", "tool.exe", []byte{0x4d, 0x5a, 0x00, 0x01, 0x02, 0xff, 0xfe})},
		},
		{
			name:    "empty file",
			uploads: []Upload{bytesUpload("other", "empty.pdf", nil)},
		},
		{
			name:    "declared too large",
			cfg:     AttachmentStoreConfig{MaxBytes: 8},
			uploads: []Upload{pdfUpload("cert.pdf")},
		},
		{
			name: "streamed too large",
			cfg:  AttachmentStoreConfig{MaxBytes: 16},
			uploads: []Upload{{
				OriginalName: "big.txt",
				Open: func() (io.ReadCloser, error) {
					return io.NopCloser(bytes.NewReader(bytes.Repeat([]byte("a"), 64))), nil
				},
			}},
		},
		{
			name:    "too many files",
			cfg:     AttachmentStoreConfig{MaxFiles: 1},
			uploads: []Upload{pdfUpload("a.pdf"), pdfUpload("b.pdf")},
		},
		{
			name:    "missing content",
			uploads: []Upload{{OriginalName: "ghost.pdf"}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			blobs := newMemBlobs()
			store := NewAttachmentStore(logger.NewNop(), blobs, tc.cfg, nil)
			_, err := store.Store(context.Background(), uuid.New(), tc.uploads)
			if !domainagg.IsCode(err, domainagg.CodeInvalidInput) {
				t.Fatalf("code: want=%s got=%s (%v)", domainagg.CodeInvalidInput, domainagg.CodeOf(err), err)
			}
			if blobs.count() != 0 {
				t.Fatalf("stored blobs: want=0 got=%d", blobs.count())
			}
		})
	}
}

func TestAttachmentStoreCleansUpOnPartialFailure(t *testing.T) {
	blobs := newMemBlobs()
	store := NewAttachmentStore(logger.NewNop(), blobs, AttachmentStoreConfig{Parallelism: 1}, nil)
	broken := Upload{
		OriginalName: "broken.pdf",
		Open:         func() (io.ReadCloser, error) { return nil, errors.New("multipart part vanished") },
	}
	_, err := store.Store(context.Background(), uuid.New(), []Upload{pdfUpload("ok.pdf"), broken})
	if !domainagg.IsCode(err, domainagg.CodeTransient) {
		t.Fatalf("code: want=%s got=%s (%v)", domainagg.CodeTransient, domainagg.CodeOf(err), err)
	}
	if blobs.count() != 0 {
		t.Fatalf("stored blobs after failure: want=0 got=%d", blobs.count())
	}
}

func TestAttachmentStoreBucketFailureIsTransient(t *testing.T) {
	blobs := newMemBlobs()
	blobs.failPut = true
	store := NewAttachmentStore(logger.NewNop(), blobs, AttachmentStoreConfig{}, nil)
	_, err := store.Store(context.Background(), uuid.New(), []Upload{pdfUpload("cert.pdf")})
	if !domainagg.IsCode(err, domainagg.CodeTransient) {
		t.Fatalf("code: want=%s got=%s (%v)", domainagg.CodeTransient, domainagg.CodeOf(err), err)
	}
}

func TestAcceptedMimeType(t *testing.T) {
	cases := []struct {
		sniffed string
		ext     string
		want    string
		ok      bool
	}{
		{"application/pdf", ".pdf", "application/pdf", true},
		{"image/png", ".png", "image/png", true},
		{"text/plain; charset=utf-8", ".txt", "text/plain; charset=utf-8", true},
		{"application/zip", ".zip", "application/zip", true},
		{"application/octet-stream", ".zip", "application/zip", false},
		{"application/octet-stream", ".exe", "", false},
		{"text/html; charset=utf-8", ".html", "", false},
	}
	for _, tc := range cases {
		got, ok := acceptedMimeType(tc.sniffed, tc.ext)
		if ok != tc.ok || (tc.ok && got != tc.want) {
			t.Fatalf("acceptedMimeType(%q, %q): want=(%q,%v) got=(%q,%v)", tc.sniffed, tc.ext, tc.want, tc.ok, got, ok)
		}
	}
	if _, ok := acceptedMimeType("application/zip", ".docx"); !ok {
		t.Fatalf("docx: want accepted")
	}
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"cert.pdf":            "cert.pdf",
		"  ../../etc/passwd ": "passwd",
		`C:\Users\me\cv.docx`: "cv.docx",
		"":                    "",
	}
	for in, want := range cases {
		if got := sanitizeFileName(in); got != want {
			t.Fatalf("sanitizeFileName(%q): want=%q got=%q", in, want, got)
		}
	}
}
