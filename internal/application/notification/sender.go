package notification

import "context"

// Template keys for quota lifecycle messages.
const (
	TemplateQuotaThreshold = "quota_threshold"
	TemplateQuotaExhausted = "quota_exhausted"
	TemplateQuotaExpired   = "quota_expired"
	TemplateQuotaFup       = "quota_fup"
	TemplateExpiryWarning  = "expiry_warning"

	TemplatePurchaseSuccess = "purchase_success"
)

// Sender delivers a templated message to one recipient. Implementations
// wrap an outbound channel such as WhatsApp; qa deployments use a log-only
// sender.
type Sender interface {
	Send(ctx context.Context, channel, address, templateKey string, data map[string]string) bool
}

// LogSender logs instead of delivering, for deployments without an
// outbound channel configured.
type LogSender struct {
	Log interface {
		Infow(msg string, keysAndValues ...interface{})
	}
}

func (s *LogSender) Send(_ context.Context, channel, address, templateKey string, data map[string]string) bool {
	s.Log.Infow("notification (log only)",
		"channel", channel, "address", address, "template", templateKey, "data", data)
	return true
}
