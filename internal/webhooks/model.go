package webhooks

import "time"

// Headers set on every delivery.
const (
	HeaderSignature = "X-Postledger-Signature"
	HeaderDelivery  = "X-Postledger-Delivery"
	HeaderEvent     = "X-Postledger-Event"
)

// Delivery records the outcome of a single delivery attempt.
type Delivery struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	PostID       uint64    `json:"post_id"`
	StatusCode   int       `json:"status_code"`
	Attempt      int       `json:"attempt"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	DeliveredAt  time.Time `json:"delivered_at"`
}
