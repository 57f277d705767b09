package email

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"github.com/emersion/go-msgauth/dkim"
)

// DKIMConfig selects the signing key. PrivateKey (inline PEM) wins over KeyPath.
type DKIMConfig struct {
	Selector   string
	Domain     string
	PrivateKey string
	KeyPath    string
}

// Enabled reports whether any DKIM setting was supplied.
func (c DKIMConfig) Enabled() bool {
	return strings.TrimSpace(c.Selector+c.Domain+c.KeyPath) != "" || strings.TrimSpace(c.PrivateKey) != ""
}

// signedHeaders are covered by the signature when present.
var signedHeaders = []string{
	"from",
	"to",
	"reply-to",
	"subject",
	"date",
	"message-id",
	"mime-version",
	"content-type",
}

// DKIMSigner adds a DKIM-Signature header to outgoing messages.
type DKIMSigner struct {
	domain   string
	selector string
	key      crypto.Signer
}

// NewDKIMSigner builds a signer from cfg. It returns nil, nil when DKIM is not configured.
func NewDKIMSigner(cfg DKIMConfig) (*DKIMSigner, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	selector := strings.TrimSpace(cfg.Selector)
	if selector == "" {
		return nil, fmt.Errorf("dkim: selector is required when enabling DKIM")
	}

	var pemData []byte
	switch {
	case strings.TrimSpace(cfg.PrivateKey) != "":
		pemData = []byte(cfg.PrivateKey)
	case strings.TrimSpace(cfg.KeyPath) != "":
		data, err := os.ReadFile(strings.TrimSpace(cfg.KeyPath))
		if err != nil {
			return nil, fmt.Errorf("dkim: read private key: %w", err)
		}
		pemData = data
	default:
		return nil, fmt.Errorf("dkim: provide a key path or an inline private key")
	}

	key, err := parsePrivateKey(pemData)
	if err != nil {
		return nil, fmt.Errorf("dkim: parse private key: %w", err)
	}

	return &DKIMSigner{
		domain:   strings.ToLower(strings.TrimSpace(cfg.Domain)),
		selector: selector,
		key:      key,
	}, nil
}

// Sign returns message with a DKIM-Signature prepended. The signing domain
// defaults to the sender's domain.
func (s *DKIMSigner) Sign(message []byte, from string) ([]byte, error) {
	domain := s.domain
	if domain == "" {
		domain = domainOf(from)
	}

	opts := &dkim.SignOptions{
		Domain:                 domain,
		Selector:               s.selector,
		Signer:                 s.key,
		HeaderCanonicalization: dkim.CanonicalizationRelaxed,
		BodyCanonicalization:   dkim.CanonicalizationRelaxed,
		HeaderKeys:             signedHeaders,
	}

	var signed bytes.Buffer
	if err := dkim.Sign(&signed, bytes.NewReader(message), opts); err != nil {
		return nil, fmt.Errorf("dkim: signing failed: %w", err)
	}
	return signed.Bytes(), nil
}

func parsePrivateKey(pemData []byte) (crypto.Signer, error) {
	for {
		block, rest := pem.Decode(pemData)
		if block == nil {
			break
		}
		switch block.Type {
		case "RSA PRIVATE KEY":
			key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, err
			}
			return key, nil
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, err
			}
			if signer, ok := key.(crypto.Signer); ok {
				return signer, nil
			}
			return nil, fmt.Errorf("unsupported private key type in PKCS#8 container")
		}
		pemData = rest
	}
	return nil, fmt.Errorf("no private key found in PEM data")
}
