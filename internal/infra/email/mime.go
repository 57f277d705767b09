package email

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"
	"time"

	"ordermail/internal/domain/notification"
)

// messageHeaders are the envelope fields the transport owns.
type messageHeaders struct {
	From      string
	FromName  string
	ReplyTo   string
	MessageID string
	Date      time.Time
}

// buildMessage renders msg as a multipart/alternative RFC 5322 message with
// CRLF line endings, text part first.
func buildMessage(h messageHeaders, msg *notification.Message) ([]byte, error) {
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return nil, fmt.Errorf("parsing recipient %q: %w", msg.To, err)
	}
	from := &mail.Address{Name: h.FromName, Address: h.From}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := writePart(mw, "text/plain; charset=utf-8", msg.Text); err != nil {
		return nil, err
	}
	if err := writePart(mw, "text/html; charset=utf-8", msg.HTML); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	var out bytes.Buffer
	header := func(k, v string) {
		fmt.Fprintf(&out, "%s: %s\r\n", k, v)
	}
	header("From", from.String())
	header("To", to.String())
	if h.ReplyTo != "" {
		header("Reply-To", (&mail.Address{Address: h.ReplyTo}).String())
	}
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", h.Date.Format(time.RFC1123Z))
	header("Message-ID", "<"+h.MessageID+">")
	header("MIME-Version", "1.0")
	header("Content-Type", "multipart/alternative; boundary="+mw.Boundary())
	header("X-Email-Type", headerValue(string(msg.Metadata.Kind)))
	header("X-Order-Number", headerValue(msg.Metadata.OrderNumber))
	header("X-Environment", headerValue(msg.Metadata.Environment))
	out.WriteString("\r\n")
	out.Write(body.Bytes())

	return out.Bytes(), nil
}

func writePart(mw *multipart.Writer, contentType, content string) error {
	ph := textproto.MIMEHeader{}
	ph.Set("Content-Type", contentType)
	ph.Set("Content-Transfer-Encoding", "quoted-printable")
	pw, err := mw.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("creating %s part: %w", contentType, err)
	}
	qp := quotedprintable.NewWriter(pw)
	if _, err := qp.Write([]byte(content)); err != nil {
		return fmt.Errorf("writing %s part: %w", contentType, err)
	}
	return qp.Close()
}

// headerValue keeps caller-supplied values on one header line.
func headerValue(v string) string {
	v = strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return ' '
		}
		return r
	}, v)
	return mime.QEncoding.Encode("utf-8", strings.TrimSpace(v))
}
