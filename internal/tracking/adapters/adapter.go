package adapters

import (
	"fmt"

	trackingdomain "github.com/Edness1/ColorCompete-sub001/internal/tracking/domain"
)

// EventAdapter parses one provider's webhook payload into normalized
// events. Adapters are tolerant: entries they cannot interpret are
// skipped, not fatal, because providers batch heterogeneous events into
// a single request.
type EventAdapter interface {
	// Parse converts a raw webhook body into normalized events.
	Parse(body []byte) ([]trackingdomain.NormalizedEvent, error)
	GetName() string
}

// ForProvider resolves the adapter registered under a provider name, as
// carried in the webhook URL path.
func ForProvider(name string) (EventAdapter, error) {
	switch name {
	case "sendgrid":
		return &SendGridAdapter{}, nil
	case "mailgun":
		return &MailgunAdapter{}, nil
	}
	return nil, fmt.Errorf("no event adapter registered for provider %q", name)
}
