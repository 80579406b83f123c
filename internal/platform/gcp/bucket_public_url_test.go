package gcp

import (
	"strings"
	"testing"
	"time"
)

func TestResolveObjectStoragePublicBaseURL(t *testing.T) {
	emulator := ObjectStorageConfig{Mode: ObjectStorageModeGCSEmulator, EmulatorHost: "http://fake-gcs:4443/"}

	t.Setenv("OBJECT_STORAGE_PUBLIC_BASE_URL", "")
	if got, err := resolveObjectStoragePublicBaseURL(ObjectStorageConfig{Mode: ObjectStorageModeGCS}); err != nil || got != "" {
		t.Fatalf("gcs default: want empty got=%q err=%v", got, err)
	}
	if got, _ := resolveObjectStoragePublicBaseURL(emulator); got != "http://fake-gcs:4443" {
		t.Fatalf("emulator fallback: want=%q got=%q", "http://fake-gcs:4443", got)
	}

	t.Setenv("OBJECT_STORAGE_PUBLIC_BASE_URL", "http://localhost:4443/")
	if got, _ := resolveObjectStoragePublicBaseURL(emulator); got != "http://localhost:4443" {
		t.Fatalf("override: want=%q got=%q", "http://localhost:4443", got)
	}

	t.Setenv("OBJECT_STORAGE_PUBLIC_BASE_URL", "localhost:4443")
	if _, err := resolveObjectStoragePublicBaseURL(emulator); err == nil {
		t.Fatalf("relative base url: expected error")
	}
}

func TestBucketConfigFromEnvRequiresBucketName(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "")
	t.Setenv("STORAGE_EMULATOR_HOST", "")
	t.Setenv("OBJECT_STORAGE_PUBLIC_BASE_URL", "")
	t.Setenv("ATTACHMENT_GCS_BUCKET_NAME", "")
	if _, err := BucketConfigFromEnv(); err == nil {
		t.Fatalf("expected missing bucket error")
	}

	t.Setenv("ATTACHMENT_GCS_BUCKET_NAME", "cert-attachments")
	t.Setenv("STORAGE_TIMEOUT", "5")
	cfg, err := BucketConfigFromEnv()
	if err != nil {
		t.Fatalf("BucketConfigFromEnv: %v", err)
	}
	if cfg.Name != "cert-attachments" || cfg.Timeout != 5*time.Second {
		t.Fatalf("config: %+v", cfg)
	}
}

func TestPublicURL(t *testing.T) {
	cases := []struct {
		name string
		bs   *bucketService
		key  string
		want string
	}{
		{
			name: "gcs default",
			bs:   &bucketService{cfg: BucketConfig{Name: "cert-attachments", Storage: ObjectStorageConfig{Mode: ObjectStorageModeGCS}}},
			key:  "requests/r1/a.pdf",
			want: "https://storage.googleapis.com/cert-attachments/requests/r1/a.pdf",
		},
		{
			name: "cdn domain",
			bs:   &bucketService{cfg: BucketConfig{Name: "cert-attachments", CDNDomain: "cdn.example.com"}},
			key:  "/requests/r1/a.pdf",
			want: "https://cdn.example.com/requests/r1/a.pdf",
		},
		{
			name: "public base url",
			bs: &bucketService{
				publicBaseURL: "http://localhost:4443",
				cfg:           BucketConfig{Name: "cert-attachments", Storage: ObjectStorageConfig{Mode: ObjectStorageModeGCS}},
			},
			key:  "requests/r1/a.pdf",
			want: "http://localhost:4443/cert-attachments/requests/r1/a.pdf",
		},
		{
			name: "emulator media endpoint",
			bs: &bucketService{
				publicBaseURL: "http://localhost:4443",
				cfg:           BucketConfig{Name: "cert-attachments", Storage: ObjectStorageConfig{Mode: ObjectStorageModeGCSEmulator}},
			},
			key:  "requests/r1/a.pdf",
			want: "http://localhost:4443/storage/v1/b/cert-attachments/o/requests%2Fr1%2Fa.pdf?alt=media",
		},
		{
			name: "emulator host when public base missing",
			bs: &bucketService{
				emulatorHost: "http://fake-gcs:4443",
				cfg:          BucketConfig{Name: "cert-attachments", Storage: ObjectStorageConfig{Mode: ObjectStorageModeGCSEmulator}},
			},
			key:  "/requests/r1/a.pdf",
			want: "http://fake-gcs:4443/storage/v1/b/cert-attachments/o/requests%2Fr1%2Fa.pdf?alt=media",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.bs.PublicURL(tc.key); got != tc.want {
				t.Fatalf("PublicURL: want=%q got=%q", tc.want, got)
			}
		})
	}
}

func TestDecodeEmulatorAttrs(t *testing.T) {
	attrs, err := decodeEmulatorAttrs(strings.NewReader(`{"size":"2048","contentType":"application/pdf","updated":"2026-03-01T09:00:00Z","etag":"abc"}`))
	if err != nil {
		t.Fatalf("decodeEmulatorAttrs: %v", err)
	}
	if attrs.Size != 2048 || attrs.ContentType != "application/pdf" || attrs.ETag != "abc" {
		t.Fatalf("attrs: %+v", attrs)
	}
	if !attrs.Updated.Equal(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("updated: got=%v", attrs.Updated)
	}
}

func TestContentTypeForKey(t *testing.T) {
	cases := map[string]string{
		"requests/r1/a.PDF":  "application/pdf",
		"requests/r1/b.jpeg": "image/jpeg",
		"requests/r1/c.bin":  "",
	}
	for key, want := range cases {
		if got := contentTypeForKey(key); got != want {
			t.Fatalf("contentTypeForKey(%q): want=%q got=%q", key, want, got)
		}
	}
}
