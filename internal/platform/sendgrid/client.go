package sendgrid

import (
	"context"
	"fmt"
	"strings"
	"time"

	sg "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/yungbote/certification-backend/internal/platform/ctxutil"
	"github.com/yungbote/certification-backend/internal/platform/envutil"
	"github.com/yungbote/certification-backend/internal/platform/logger"
)

const mailSendPath = "/v3/mail/send"

type Client interface {
	Send(ctx context.Context, req SendEmailRequest) (*SendEmailResult, error)
}

type Config struct {
	APIKey           string
	BaseURL          string
	DefaultFromEmail string
	DefaultFromName  string
	Timeout          time.Duration
	// Retry lets the SDK wait out 429 rate limits.
	Retry bool
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:           envutil.String("SENDGRID_API_KEY", ""),
		BaseURL:          envutil.String("SENDGRID_BASE_URL", ""),
		DefaultFromEmail: envutil.String("SENDGRID_FROM_EMAIL", ""),
		DefaultFromName:  envutil.String("SENDGRID_FROM_NAME", "Certification"),
		Timeout:          envutil.Duration("SENDGRID_TIMEOUT", 15*time.Second),
		Retry:            envutil.Bool("SENDGRID_RETRY_RATE_LIMITED", true),
	}
}

func NewFromEnv(log *logger.Logger) (Client, error) {
	return New(log, ConfigFromEnv())
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing SENDGRID_API_KEY")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.sendgrid.com"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &client{
		log: log.With("client", "SendGridClient"),
		cfg: cfg,
	}, nil
}

type client struct {
	log *logger.Logger
	cfg Config
}

type EmailAddress struct {
	Email string
	Name  string
}

type SendEmailRequest struct {
	From       EmailAddress
	ReplyTo    *EmailAddress
	To         []EmailAddress
	Subject    string
	Text       string
	HTML       string
	Categories []string
	CustomArgs map[string]string
}

type SendEmailResult struct {
	StatusCode int
	MessageID  string
}

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "sendgrid: <nil error>"
	}
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = "<empty body>"
	}
	if len(msg) > 2000 {
		msg = msg[:2000] + "..."
	}
	return fmt.Sprintf("sendgrid http %d: %s", e.StatusCode, msg)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) Send(ctx context.Context, req SendEmailRequest) (*SendEmailResult, error) {
	if c == nil {
		return nil, fmt.Errorf("sendgrid client unavailable")
	}
	msg, err := c.build(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), c.cfg.Timeout)
	defer cancel()

	request := sg.GetRequest(c.cfg.APIKey, mailSendPath, c.cfg.BaseURL)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(msg)

	send := sg.MakeRequestWithContext
	if c.cfg.Retry {
		send = sg.MakeRequestRetryWithContext
	}
	resp, err := send(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: resp.Body}
	}
	out := &SendEmailResult{StatusCode: resp.StatusCode}
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		out.MessageID = strings.TrimSpace(ids[0])
	}
	c.log.Debug("Email accepted", "status", resp.StatusCode, "message_id", out.MessageID, "recipients", len(req.To))
	return out, nil
}

func (c *client) build(req SendEmailRequest) (*mail.SGMailV3, error) {
	from := req.From
	if strings.TrimSpace(from.Email) == "" {
		from = EmailAddress{Email: c.cfg.DefaultFromEmail, Name: c.cfg.DefaultFromName}
	}
	from.Email = strings.TrimSpace(from.Email)
	if from.Email == "" {
		return nil, fmt.Errorf("sendgrid: From.Email required (or set SENDGRID_FROM_EMAIL)")
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return nil, fmt.Errorf("sendgrid: Subject required")
	}
	text := strings.TrimSpace(req.Text)
	html := strings.TrimSpace(req.HTML)
	if text == "" && html == "" {
		return nil, fmt.Errorf("sendgrid: Text or HTML content required")
	}

	p := mail.NewPersonalization()
	for _, to := range req.To {
		if addr := strings.TrimSpace(to.Email); addr != "" {
			p.AddTos(mail.NewEmail(strings.TrimSpace(to.Name), addr))
		}
	}
	if len(p.To) == 0 {
		return nil, fmt.Errorf("sendgrid: To required")
	}
	for k, v := range req.CustomArgs {
		p.SetCustomArg(k, v)
	}

	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(strings.TrimSpace(from.Name), from.Email))
	m.Subject = subject
	m.AddPersonalizations(p)
	if text != "" {
		m.AddContent(mail.NewContent("text/plain", text))
	}
	if html != "" {
		m.AddContent(mail.NewContent("text/html", html))
	}
	if req.ReplyTo != nil && strings.TrimSpace(req.ReplyTo.Email) != "" {
		m.SetReplyTo(mail.NewEmail(strings.TrimSpace(req.ReplyTo.Name), strings.TrimSpace(req.ReplyTo.Email)))
	}
	if len(req.Categories) > 0 {
		m.AddCategories(req.Categories...)
	}
	return m, nil
}
