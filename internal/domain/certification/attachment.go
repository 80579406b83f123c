package certification

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type AttachmentKind string

const (
	AttachmentCertificate AttachmentKind = "certificate"
	AttachmentDiploma     AttachmentKind = "diploma"
	AttachmentProject     AttachmentKind = "project"
	AttachmentReference   AttachmentKind = "reference"
	AttachmentExperience  AttachmentKind = "experience"
	AttachmentPublication AttachmentKind = "publication"
	AttachmentOther       AttachmentKind = "other"
)

// ParseAttachmentKind maps unknown or empty kinds to "other".
func ParseAttachmentKind(raw string) AttachmentKind {
	switch k := AttachmentKind(strings.ToLower(strings.TrimSpace(raw))); k {
	case AttachmentCertificate, AttachmentDiploma, AttachmentProject, AttachmentReference,
		AttachmentExperience, AttachmentPublication:
		return k
	default:
		return AttachmentOther
	}
}

// Attachment is a justificatory piece. Rows are append-only; only Verified changes.
type Attachment struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID    uuid.UUID      `gorm:"type:uuid;not null;index:idx_cert_attachment_request_position,priority:1;column:request_id" json:"request_id"`
	Position     int            `gorm:"not null;index:idx_cert_attachment_request_position,priority:2;column:position" json:"position"`
	Kind         AttachmentKind `gorm:"type:varchar(32);not null;column:kind" json:"kind"`
	MimeType     string         `gorm:"column:mime_type" json:"mime_type"`
	SizeBytes    int64          `gorm:"not null;default:0;column:size_bytes" json:"size_bytes"`
	OriginalName string         `gorm:"column:original_name" json:"original_name"`
	StorageKey   string         `gorm:"not null;column:storage_key" json:"storage_key"`
	Verified     bool           `gorm:"not null;default:false;column:verified" json:"verified"`
	UploadedBy   uuid.UUID      `gorm:"type:uuid;not null;column:uploaded_by" json:"uploaded_by"`
	CreatedAt    time.Time      `gorm:"not null;column:created_at" json:"created_at"`
}

func (Attachment) TableName() string { return "certification_attachment" }

// StoredFile is a blob already written to the attachment store, waiting to be
// recorded against a request.
type StoredFile struct {
	Kind         AttachmentKind
	MimeType     string
	SizeBytes    int64
	OriginalName string
	StorageKey   string
}
