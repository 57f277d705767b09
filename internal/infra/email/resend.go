package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"ordermail/internal/domain/notification"
)

var _ notification.Transport = (*ResendTransport)(nil)

const (
	resendProvider = "resend"
	resendBaseURL  = "https://api.resend.com"
)

// ResendConfig holds Resend API settings.
type ResendConfig struct {
	APIKey         string
	FromAddress    string
	FromName       string
	ReplyToAddress string
	// BaseURL overrides the API endpoint (tests).
	BaseURL string
}

// ResendTransport sends emails using the Resend API. The HTTP client and its
// connection pool are shared by every Deliver call.
type ResendTransport struct {
	cfg        ResendConfig
	httpClient *http.Client
}

// NewResendTransport creates a new Resend transport.
func NewResendTransport(cfg ResendConfig) *ResendTransport {
	if cfg.BaseURL == "" {
		cfg.BaseURL = resendBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &ResendTransport{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the transport identifier.
func (p *ResendTransport) Name() string { return resendProvider }

// IsConfigured reports whether the API key and sender are set.
func (p *ResendTransport) IsConfigured() bool {
	return strings.TrimSpace(p.cfg.APIKey) != "" && strings.TrimSpace(p.cfg.FromAddress) != ""
}

type resendTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type resendEmail struct {
	From    string      `json:"from"`
	To      []string    `json:"to"`
	Subject string      `json:"subject"`
	HTML    string      `json:"html"`
	Text    string      `json:"text,omitempty"`
	ReplyTo string      `json:"reply_to,omitempty"`
	Tags    []resendTag `json:"tags,omitempty"`
}

// Deliver sends an email via the Resend API and returns the message ID.
func (p *ResendTransport) Deliver(ctx context.Context, msg *notification.Message) (string, error) {
	from := p.cfg.FromAddress
	if p.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", p.cfg.FromName, p.cfg.FromAddress)
	}

	payload := resendEmail{
		From:    from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: p.cfg.ReplyToAddress,
		Tags:    tagsFor(msg.Metadata),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", notification.NewPermanentError(resendProvider, 0, fmt.Errorf("marshaling email payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/emails", bytes.NewReader(jsonData))
	if err != nil {
		return "", notification.NewPermanentError(resendProvider, 0, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	respBody, err := p.do(req)
	if err != nil {
		return "", err
	}

	var successResp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &successResp); err != nil {
		return "", notification.NewTransientError(resendProvider, 0, fmt.Errorf("parsing resend response: %w", err))
	}
	return successResp.ID, nil
}

// Verify checks the API key by listing domains.
func (p *ResendTransport) Verify(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/domains", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	_, err = p.do(req)
	return err
}

// do executes req and classifies failures: network errors, 429 and 5xx are
// transient; every other 4xx is permanent.
func (p *ResendTransport) do(req *http.Request) ([]byte, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, notification.NewTransientError(resendProvider, 0, fmt.Errorf("executing request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max
	if err != nil {
		return nil, notification.NewTransientError(resendProvider, resp.StatusCode, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 400 {
		return respBody, nil
	}

	var errResp struct {
		Message string `json:"message"`
		Name    string `json:"name"`
	}
	_ = json.Unmarshal(respBody, &errResp)

	detail := errResp.Message
	if detail == "" {
		detail = fmt.Sprintf("status %d", resp.StatusCode)
	}
	cause := fmt.Errorf("resend: %s", detail)

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, notification.NewTransientError(resendProvider, resp.StatusCode, cause)
	}
	return nil, notification.NewPermanentError(resendProvider, resp.StatusCode, cause)
}

// Resend tag values allow only ASCII letters, digits, underscores and dashes.
var tagUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

func tagsFor(m notification.Metadata) []resendTag {
	var tags []resendTag
	add := func(name, value string) {
		if value = tagUnsafe.ReplaceAllString(value, "_"); value != "" {
			tags = append(tags, resendTag{Name: name, Value: value})
		}
	}
	add("email_type", string(m.Kind))
	add("order_number", m.OrderNumber)
	add("environment", m.Environment)
	return tags
}
