package driven

import (
	"context"

	"github.com/clinicops/wa-adapter/internal/domain/model"
)

// InboundSink receives normalized inbound messages from the relay. Delivery
// is best-effort: a failed delivery is logged by the relay and dropped, never
// retried against the transport's event ordering.
type InboundSink interface {
	// Name identifies the sink in logs.
	Name() string

	// Deliver forwards one message. The relay bounds concurrent deliveries;
	// implementations should honor ctx for their own timeout.
	Deliver(ctx context.Context, msg model.InboundMessage) error
}
