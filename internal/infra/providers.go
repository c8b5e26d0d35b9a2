package infra

import (
	"log/slog"
	"net/http"

	"github.com/tradeportal/portal_auth/internal/auth"
	"github.com/tradeportal/portal_auth/internal/config"
	"github.com/tradeportal/portal_auth/internal/events"
	"github.com/tradeportal/portal_auth/internal/notification"
	"github.com/tradeportal/portal_auth/internal/otpgateway"
	"github.com/tradeportal/portal_auth/internal/verification"
)

// OpenEvents connects to NATS when configured. A failed connection is logged
// and replaced by a no-op publisher; events are not on the critical path.
func OpenEvents(cfg config.Config, logger *slog.Logger) events.Publisher {
	if cfg.NATSURL == "" {
		return events.NopPublisher{}
	}
	pub, err := events.NewNATSPublisher(cfg.NATSURL)
	if err != nil {
		logger.Warn("nats unavailable, events disabled", slog.Any("error", err))
		return events.NopPublisher{}
	}
	return pub
}

// OpenGateway builds the OTP gateway client. It returns a nil interface when
// the gateway is not configured.
func OpenGateway(cfg config.Config) (auth.Gateway, error) {
	g := cfg.OTPGateway
	if !g.Enabled() {
		return nil, nil
	}
	client, err := otpgateway.NewClient(otpgateway.Config{
		BaseURL:     g.URL,
		SendPath:    g.SendPath,
		VerifyPath:  g.VerifyPath,
		IDHeader:    g.IDHeader,
		ID:          g.ID,
		KeyHeader:   g.KeyHeader,
		Key:         g.Key,
		Template:    g.Template,
		Language:    g.Language,
		CallbackURL: g.CallbackURL,
		OTPLength:   verification.DefaultLength,
		Timeout:     g.Timeout,
	}, &http.Client{Timeout: g.Timeout})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// OpenNotifiers returns the SMS and e-mail notifiers, falling back to the
// logger when a provider is not configured.
func OpenNotifiers(cfg config.Config, logger *slog.Logger) (sms, mail notification.Notifier, err error) {
	sms = notification.NewLoggerNotifier(logger)
	mail = notification.NewLoggerNotifier(logger)
	if cfg.Twilio.Enabled() {
		tw, err := notification.NewTwilioNotifier(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber)
		if err != nil {
			return nil, nil, err
		}
		sms = tw
	}
	if cfg.Mail.Enabled() {
		ms, err := notification.NewMailerSendNotifier(cfg.Mail.APIKey, cfg.Mail.FromName, cfg.Mail.FromEmail)
		if err != nil {
			return nil, nil, err
		}
		mail = ms
	}
	return sms, mail, nil
}
