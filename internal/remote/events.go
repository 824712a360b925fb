package remote

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/opsync/internal/model"
)

// Push event names as they arrive on the realtime channel.
const (
	EventPaymentCreated = "payment:created"
	EventOrderCancelled = "order:cancelled"
)

// PaymentCreated announces a new live transaction. Payloads from older
// backend versions may be sparse; DecodePushEvent fills defaults.
type PaymentCreated struct {
	TxnID       string       `json:"txn_id"`
	OrderID     string       `json:"order_id"`
	Amount      int64        `json:"amount"`
	Currency    string       `json:"currency"`
	Status      model.Status `json:"status"`
	Description string       `json:"description"`
}

// OrderCancelled announces that an order was cancelled upstream. The
// feed rewrites the matching transaction's status in place.
type OrderCancelled struct {
	OrderID string `json:"order_id"`
}

// DecodePushEvent decodes a named push payload into its typed event.
// Missing fields default: a created payment without a status arrives as
// pending. Unknown event names are an error; the caller decides whether
// to drop or surface them.
func DecodePushEvent(name string, payload []byte) (any, error) {
	switch name {
	case EventPaymentCreated:
		var ev PaymentCreated
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		if ev.Status == "" {
			ev.Status = model.StatusPending
		}
		return ev, nil
	case EventOrderCancelled:
		var ev OrderCancelled
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown push event %q", name)
	}
}
