package domain

import "time"

// TimestampLayout is the wire format of transaction timestamps (second precision).
const TimestampLayout = "2006-01-02 15:04:05"

// Transaction is a validated money movement between two accounts.
// Values are passed by copy and never mutated after ingestion.
type Transaction struct {
	ID         string    `validate:"required"`
	SenderID   string    `validate:"required"`
	ReceiverID string    `validate:"required"`
	Amount     float64   `validate:"gt=0"`
	Timestamp  time.Time `validate:"required"`
}
