package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/certification-backend/internal/domain/certification"
	"github.com/yungbote/certification-backend/internal/domain/identity"
	"github.com/yungbote/certification-backend/internal/observability"
	"github.com/yungbote/certification-backend/internal/platform/logger"
	"github.com/yungbote/certification-backend/internal/platform/sendgrid"
	"github.com/yungbote/certification-backend/internal/realtime"
	"github.com/yungbote/certification-backend/internal/realtime/bus"
)

type NotificationKind string

const (
	NotifyStatusChanged NotificationKind = "status_changed"
	NotifyBadgeIssued   NotificationKind = "badge_issued"
	NotifyBadgeExpiring NotificationKind = "badge_expiring"
	// NotifyQueueChanged reaches role channels only, never by email.
	NotifyQueueChanged NotificationKind = "queue_changed"
)

// Notification is one fire-and-forget message to a user or a role.
type Notification struct {
	Kind        NotificationKind
	RecipientID uuid.UUID
	Role        identity.Role
	RequestID   uuid.UUID
	Action      certification.Action
	From        certification.Status
	To          certification.Status
	Comment     string
	Badge       *certification.Badge
	At          time.Time
}

// Notifier never blocks and never fails the caller. Notify reports whether
// the notification was queued; false means it was dropped.
type Notifier interface {
	Notify(n Notification) bool
}

type NotifierConfig struct {
	QueueSize int
	Workers   int
	// Timeout bounds delivery of one notification across all channels.
	Timeout time.Duration
	AppURL  string
}

type Dispatcher struct {
	log      *logger.Logger
	bus      bus.Bus
	mail     sendgrid.Client
	identity IdentityProvider
	metrics  *observability.Metrics
	cfg      NotifierConfig

	queue chan Notification
	wg    sync.WaitGroup
	once  sync.Once
	stop  chan struct{}
}

// NewDispatcher wires the realtime bus and optional email client. mail may be
// nil when SendGrid is not configured.
func NewDispatcher(log *logger.Logger, b bus.Bus, mail sendgrid.Client, idp IdentityProvider, metrics *observability.Metrics, cfg NotifierConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Dispatcher{
		log:      log.With("service", "NotificationDispatcher"),
		bus:      b,
		mail:     mail,
		identity: idp,
		metrics:  metrics,
		cfg:      cfg,
		queue:    make(chan Notification, cfg.QueueSize),
		stop:     make(chan struct{}),
	}
}

func (d *Dispatcher) Notify(n Notification) bool {
	if d == nil {
		return false
	}
	if n.RecipientID == uuid.Nil && n.Role == "" {
		return false
	}
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	select {
	case d.queue <- n:
		d.metrics.SetNotificationQueueDepth(len(d.queue))
		return true
	default:
		d.metrics.IncNotification("queue", "dropped")
		d.log.Warn("Notification queue full; dropping", "kind", n.Kind, "request_id", n.RequestID, "recipient_id", n.RecipientID)
		return false
	}
}

// Start launches the workers; they drain the queue after ctx ends or Stop.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case n := <-d.queue:
					d.deliver(ctx, n)
				case <-ctx.Done():
					d.drain()
					return
				case <-d.stop:
					d.drain()
					return
				}
			}
		}()
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case n := <-d.queue:
			d.deliver(context.Background(), n)
		default:
			return
		}
	}
}

func (d *Dispatcher) Stop() {
	d.once.Do(func() { close(d.stop) })
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	d.metrics.SetNotificationQueueDepth(len(d.queue))
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.Timeout)
	defer cancel()

	var g errgroup.Group
	if d.bus != nil {
		g.Go(func() error {
			err := d.bus.Publish(ctx, realtimeMessage(n))
			d.record("realtime", err, n)
			return nil
		})
	}
	if d.mail != nil && n.RecipientID != uuid.Nil && n.Kind != NotifyQueueChanged {
		g.Go(func() error {
			d.record("email", d.sendEmail(ctx, n), n)
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) record(channel string, err error, n Notification) {
	if err != nil {
		d.metrics.IncNotification(channel, "failure")
		d.log.Warn("Notification delivery failed",
			"channel", channel, "kind", n.Kind, "request_id", n.RequestID, "recipient_id", n.RecipientID, "error", err)
		return
	}
	d.metrics.IncNotification(channel, "success")
}

func (d *Dispatcher) sendEmail(ctx context.Context, n Notification) error {
	if d.identity == nil {
		return fmt.Errorf("identity provider not configured")
	}
	contact, err := d.identity.Contact(ctx, n.RecipientID)
	if err != nil {
		return err
	}
	if contact == nil || strings.TrimSpace(contact.Email) == "" {
		d.metrics.IncNotification("email", "skipped")
		return nil
	}
	subject, body := emailContent(n, d.cfg.AppURL)
	_, err = d.mail.Send(ctx, sendgrid.SendEmailRequest{
		To:         []sendgrid.EmailAddress{{Email: contact.Email, Name: contact.DisplayName}},
		Subject:    subject,
		Text:       body,
		Categories: []string{"certification", string(n.Kind)},
		CustomArgs: map[string]string{"request_id": n.RequestID.String()},
	})
	return err
}

func realtimeMessage(n Notification) realtime.Message {
	channel := realtime.UserChannel(n.RecipientID)
	if n.RecipientID == uuid.Nil {
		channel = realtime.RoleChannel(string(n.Role))
	}
	event := realtime.EventRequestStatusChanged
	switch n.Kind {
	case NotifyBadgeIssued:
		event = realtime.EventBadgeIssued
	case NotifyBadgeExpiring:
		event = realtime.EventBadgeExpiring
	}
	data := map[string]any{
		"request_id": n.RequestID,
		"action":     n.Action,
		"from":       n.From,
		"to":         n.To,
	}
	if n.Badge != nil {
		data["badge"] = n.Badge
	}
	return realtime.Message{Channel: channel, Event: event, Data: data, At: n.At}
}

func emailContent(n Notification, appURL string) (string, string) {
	link := ""
	if base := strings.TrimRight(strings.TrimSpace(appURL), "/"); base != "" && n.RequestID != uuid.Nil {
		link = fmt.Sprintf("\n\nOpen the request: %s/certification-requests/%s", base, n.RequestID)
	}
	comment := ""
	if c := strings.TrimSpace(n.Comment); c != "" {
		comment = fmt.Sprintf("\n\nComment: %s", c)
	}
	switch n.Kind {
	case NotifyBadgeIssued:
		level := ""
		if n.Badge != nil {
			level = string(n.Badge.Level) + " "
		}
		return "Your certification was approved",
			fmt.Sprintf("Congratulations, your certification request was approved and a %sbadge was issued.%s%s", level, comment, link)
	case NotifyBadgeExpiring:
		when := ""
		if n.Badge != nil && n.Badge.ExpiresAt != nil {
			when = " on " + n.Badge.ExpiresAt.Format("2006-01-02")
		}
		return "Your certification badge expires soon",
			fmt.Sprintf("Your badge expires%s. Submit a new certification request to renew it.%s", when, link)
	}
	switch n.To {
	case certification.StatusAssigned:
		if n.Action == certification.ActionResubmit || n.Action == certification.ActionAssign || n.Action == certification.ActionReassign {
			return "A certification request is assigned to you",
				fmt.Sprintf("A certification request is waiting for your evaluation.%s%s", comment, link)
		}
	case certification.StatusComplementRequired:
		return "Additional information requested",
			fmt.Sprintf("Your certification request needs additional information before a decision can be made.%s%s", comment, link)
	case certification.StatusRejected:
		return "Your certification request was rejected",
			fmt.Sprintf("Your certification request was rejected.%s%s", comment, link)
	case certification.StatusCancelled:
		return "Certification request cancelled", fmt.Sprintf("The certification request was cancelled.%s", link)
	}
	return "Certification request updated",
		fmt.Sprintf("Your certification request is now %s.%s%s", n.To.Label(), comment, link)
}
