package email

import (
	"fmt"
	"strings"
	"time"

	"ordermail/internal/config"
	"ordermail/internal/domain/notification"
)

// NewTransport builds the transport selected by email.provider.
// An unconfigured transport is still returned: the executor simulates sends
// and the health check reports it.
func NewTransport(cfg *config.Config) (notification.Transport, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Email.Provider)) {
	case "", "smtp":
		signer, err := NewDKIMSigner(DKIMConfig{
			Selector:   cfg.SMTP.DKIM.Selector,
			Domain:     cfg.SMTP.DKIM.Domain,
			PrivateKey: cfg.SMTP.DKIM.PrivateKey,
			KeyPath:    cfg.SMTP.DKIM.KeyPath,
		})
		if err != nil {
			return nil, err
		}
		return NewSMTPTransport(SMTPConfig{
			Host:           strings.TrimSpace(cfg.SMTP.Host),
			Port:           cfg.SMTP.Port,
			Username:       cfg.SMTP.Username,
			Password:       cfg.SMTP.Password,
			RequireTLS:     cfg.SMTP.RequireTLS,
			HeloName:       cfg.SMTP.HeloName,
			PoolSize:       cfg.SMTP.PoolSize,
			ConnectTimeout: time.Duration(cfg.SMTP.ConnectTimeoutSec) * time.Second,
			CommandTimeout: time.Duration(cfg.SMTP.CommandTimeoutSec) * time.Second,
			FromAddress:    cfg.Email.FromAddress,
			FromName:       cfg.Email.FromName,
			ReplyToAddress: cfg.Email.ReplyToAddress,
		}, signer), nil
	case "resend":
		return NewResendTransport(ResendConfig{
			APIKey:         cfg.Email.APIKey,
			FromAddress:    cfg.Email.FromAddress,
			FromName:       cfg.Email.FromName,
			ReplyToAddress: cfg.Email.ReplyToAddress,
		}), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q (want smtp or resend)", cfg.Email.Provider)
	}
}
