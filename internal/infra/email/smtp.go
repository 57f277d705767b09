package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"

	"ordermail/internal/domain/notification"

	"github.com/google/uuid"
)

var _ notification.Transport = (*SMTPTransport)(nil)

const (
	smtpProvider = "smtp"
	quitTimeout  = 2 * time.Second
)

// SMTPConfig holds relay settings for SMTPTransport.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	RequireTLS bool
	HeloName   string

	// PoolSize bounds concurrent sessions; idle sessions are kept for reuse.
	PoolSize       int
	ConnectTimeout time.Duration
	CommandTimeout time.Duration

	FromAddress    string
	FromName       string
	ReplyToAddress string

	// TLSConfig overrides the client TLS settings (tests, private CAs).
	TLSConfig *tls.Config
}

// SMTPTransport delivers messages through an authenticated SMTP relay.
// Sessions are opened lazily and reused across concurrent Deliver calls.
type SMTPTransport struct {
	cfg    SMTPConfig
	signer *DKIMSigner

	initOnce sync.Once
	slots    chan struct{}
	idle     chan *session

	newMessageID func() string
	now          func() time.Time
}

// session is one open SMTP connection.
type session struct {
	conn   net.Conn
	client *smtp.Client
}

func (s *session) close() {
	_ = s.conn.SetDeadline(time.Now().Add(quitTimeout))
	_ = s.client.Quit()
	_ = s.conn.Close()
}

// NewSMTPTransport creates an SMTP transport. signer may be nil.
func NewSMTPTransport(cfg SMTPConfig, signer *DKIMSigner) *SMTPTransport {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 10
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 10 * time.Second
	}
	return &SMTPTransport{
		cfg:          cfg,
		signer:       signer,
		newMessageID: uuid.NewString,
		now:          time.Now,
	}
}

// Name returns the transport identifier.
func (t *SMTPTransport) Name() string { return smtpProvider }

// IsConfigured reports whether host, credentials and sender are all set.
func (t *SMTPTransport) IsConfigured() bool {
	for _, v := range []string{t.cfg.Host, t.cfg.Username, t.cfg.Password, t.cfg.FromAddress} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

func (t *SMTPTransport) init() {
	t.initOnce.Do(func() {
		t.slots = make(chan struct{}, t.cfg.PoolSize)
		t.idle = make(chan *session, t.cfg.PoolSize)
		slog.Info("smtp transport initialized",
			"host", t.cfg.Host,
			"port", t.cfg.Port,
			"pool_size", t.cfg.PoolSize,
			"dkim", t.signer != nil,
		)
	})
}

// Deliver sends msg and returns its Message-ID.
func (t *SMTPTransport) Deliver(ctx context.Context, msg *notification.Message) (string, error) {
	t.init()

	select {
	case t.slots <- struct{}{}:
	case <-ctx.Done():
		return "", notification.NewTransientError(smtpProvider, 0, ctx.Err())
	}
	defer func() { <-t.slots }()

	domain := domainOf(t.cfg.FromAddress)
	id := t.newMessageID() + "@" + domain
	data, err := buildMessage(messageHeaders{
		From:      t.cfg.FromAddress,
		FromName:  t.cfg.FromName,
		ReplyTo:   t.cfg.ReplyToAddress,
		MessageID: id,
		Date:      t.now(),
	}, msg)
	if err != nil {
		return "", notification.NewPermanentError(smtpProvider, 0, err)
	}
	if t.signer != nil {
		if data, err = t.signer.Sign(data, t.cfg.FromAddress); err != nil {
			return "", notification.NewPermanentError(smtpProvider, 0, err)
		}
	}

	s, err := t.acquire(ctx)
	if err != nil {
		return "", err
	}

	stop := context.AfterFunc(ctx, func() { _ = s.conn.SetDeadline(time.Now()) })
	err = t.send(s, msg.To, data)
	aborted := !stop()

	if err != nil {
		if aborted {
			s.close()
			return "", notification.NewTransientError(smtpProvider, 0, fmt.Errorf("%w: %w", ctx.Err(), err))
		}
		t.release(s, isReply(err))
		return "", err
	}
	t.release(s, !aborted)
	return id, nil
}

// acquire returns an idle session that still answers, or dials a new one.
func (t *SMTPTransport) acquire(ctx context.Context) (*session, error) {
	for {
		select {
		case s := <-t.idle:
			_ = s.conn.SetDeadline(time.Now().Add(t.cfg.CommandTimeout))
			if err := s.client.Reset(); err != nil {
				slog.Debug("discarding stale smtp session", "error", err)
				_ = s.conn.Close()
				continue
			}
			return s, nil
		default:
			return t.dial(ctx)
		}
	}
}

// release keeps a healthy session for reuse; anything else is closed.
// A half-finished transaction is cleared by the RSET in acquire.
func (t *SMTPTransport) release(s *session, reusable bool) {
	if reusable {
		_ = s.conn.SetDeadline(time.Time{})
		select {
		case t.idle <- s:
			return
		default:
		}
	}
	s.close()
}

func (t *SMTPTransport) send(s *session, to string, data []byte) error {
	_ = s.conn.SetDeadline(time.Now().Add(t.cfg.CommandTimeout))

	if err := s.client.Mail(t.cfg.FromAddress); err != nil {
		return classify("mail from", err)
	}
	if err := s.client.Rcpt(to); err != nil {
		return classify("rcpt to", err)
	}
	w, err := s.client.Data()
	if err != nil {
		return classify("data", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return classify("data write", err)
	}
	if err := w.Close(); err != nil {
		return classify("data close", err)
	}
	return nil
}

// dial opens and authenticates a new session.
func (t *SMTPTransport) dial(ctx context.Context) (*session, error) {
	addr := net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))
	dialer := &net.Dialer{Timeout: t.cfg.ConnectTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, notification.NewTransientError(smtpProvider, 0, fmt.Errorf("dial %s: %w", addr, err))
	}
	_ = conn.SetDeadline(time.Now().Add(t.cfg.CommandTimeout))

	implicitTLS := t.cfg.Port == 465
	if implicitTLS {
		conn = tls.Client(conn, t.tlsConfig())
	}

	client, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return nil, classify("greeting", err)
	}
	s := &session{conn: conn, client: client}

	if err := t.handshake(s, implicitTLS); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (t *SMTPTransport) handshake(s *session, implicitTLS bool) error {
	if t.cfg.HeloName != "" {
		if err := s.client.Hello(t.cfg.HeloName); err != nil {
			return classify("helo", err)
		}
	}

	if !implicitTLS {
		if ok, _ := s.client.Extension("STARTTLS"); ok {
			if err := s.client.StartTLS(t.tlsConfig()); err != nil {
				return classify("starttls", err)
			}
		} else if t.cfg.RequireTLS {
			return notification.NewPermanentError(smtpProvider, 0, errors.New("server does not support STARTTLS"))
		}
	}

	if t.cfg.Username != "" {
		if ok, _ := s.client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
			if err := s.client.Auth(auth); err != nil {
				var netErr net.Error
				if !isReply(err) && !errors.As(err, &netErr) {
					// Refused locally, e.g. credentials over an unencrypted link.
					return notification.NewPermanentError(smtpProvider, 0, fmt.Errorf("auth: %w", err))
				}
				return classify("auth", err)
			}
		}
	}
	return nil
}

func (t *SMTPTransport) tlsConfig() *tls.Config {
	if t.cfg.TLSConfig != nil {
		return t.cfg.TLSConfig
	}
	return &tls.Config{ServerName: t.cfg.Host, MinVersion: tls.VersionTLS12}
}

// Verify opens a fresh session and issues NOOP. Pooled sessions are untouched.
func (t *SMTPTransport) Verify(ctx context.Context) error {
	s, err := t.dial(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	if err := s.client.Noop(); err != nil {
		return classify("noop", err)
	}
	return nil
}

// Close quits every idle session.
func (t *SMTPTransport) Close() error {
	if t.idle == nil {
		return nil
	}
	for {
		select {
		case s := <-t.idle:
			s.close()
		default:
			return nil
		}
	}
}

// classify maps SMTP replies to failure classes: 5xx replies are permanent,
// 4xx replies and network errors are transient, certificate errors are permanent.
func classify(stage string, err error) error {
	wrapped := fmt.Errorf("%s: %w", stage, err)

	var reply *textproto.Error
	if errors.As(err, &reply) {
		if reply.Code >= 500 {
			return notification.NewPermanentError(smtpProvider, reply.Code, wrapped)
		}
		return notification.NewTransientError(smtpProvider, reply.Code, wrapped)
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return notification.NewPermanentError(smtpProvider, 0, wrapped)
	}
	return notification.NewTransientError(smtpProvider, 0, wrapped)
}

// isReply reports whether err came from a well-formed server reply,
// meaning the session itself is still usable.
func isReply(err error) bool {
	var reply *textproto.Error
	return errors.As(err, &reply)
}

func domainOf(address string) string {
	if i := strings.LastIndex(address, "@"); i >= 0 && i+1 < len(address) {
		return strings.ToLower(strings.Trim(address[i+1:], "> "))
	}
	return "localhost"
}
