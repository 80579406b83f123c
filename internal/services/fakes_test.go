package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/certification-backend/internal/domain/identity"
	"github.com/yungbote/certification-backend/internal/platform/sendgrid"
)

type fakeIdentity struct {
	mu       sync.Mutex
	roles    map[uuid.UUID][]identity.Role
	contacts map[uuid.UUID]*identity.Contact
	err      error
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		roles:    map[uuid.UUID][]identity.Role{},
		contacts: map[uuid.UUID]*identity.Contact{},
	}
}

func (f *fakeIdentity) grant(id uuid.UUID, roles ...identity.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[id] = append(f.roles[id], roles...)
}

func (f *fakeIdentity) Roles(ctx context.Context, userID uuid.UUID) ([]identity.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]identity.Role(nil), f.roles[userID]...), nil
}

func (f *fakeIdentity) HasRole(ctx context.Context, userID uuid.UUID, role identity.Role) (bool, error) {
	roles, err := f.Roles(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeIdentity) Contact(ctx context.Context, userID uuid.UUID) (*identity.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.contacts[userID], nil
}

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	failPut bool
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memBlobs) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	if m.failPut {
		return fmt.Errorf("bucket unavailable")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memBlobs) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	delete(m.types, key)
	return nil
}

func (m *memBlobs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []Notification
}

func (r *recordingNotifier) Notify(n Notification) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return true
}

func (r *recordingNotifier) take() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.got
	r.got = nil
	return out
}

type recordingMail struct {
	mu   sync.Mutex
	sent []sendgrid.SendEmailRequest
	err  error
}

func (r *recordingMail) Send(ctx context.Context, req sendgrid.SendEmailRequest) (*sendgrid.SendEmailResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.sent = append(r.sent, req)
	return &sendgrid.SendEmailResult{StatusCode: 202}, nil
}

func (r *recordingMail) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n")

func pdfUpload(name string) Upload {
	return bytesUpload("certificate", name, pdfBytes)
}

func bytesUpload(kind, name string, data []byte) Upload {
	return Upload{
		Kind:         kind,
		OriginalName: name,
		DeclaredSize: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}
