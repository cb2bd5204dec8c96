package domain

import "time"

// TxDirection is the direction of a transaction from the perspective
// of the entity that requested it from the Transaction Source.
type TxDirection string

const (
	DirectionOutgoing TxDirection = "outgoing"
	DirectionIncoming TxDirection = "incoming"
	DirectionInternal TxDirection = "internal"
)

// TxRecordType is the external Transaction Source's own direction
// vocabulary (§6), distinct from TxDirection which is graph-relative.
type TxRecordType string

const (
	TxReceived TxRecordType = "received"
	TxSent     TxRecordType = "sent"
	TxInternal TxRecordType = "internal"
)

// TxRecord is one row returned by the Transaction Source.
type TxRecord struct {
	Hash      string
	Timestamp time.Time
	Amount    float64
	From      string
	To        string
	Type      TxRecordType
	Tags      []string
}

// Transaction is a graph edge: identified by transaction hash and
// direction, amount is non-negative fixed-point, timestamp is monotone
// within the ingestion window. Invariant: FromID != ToID.
type Transaction struct {
	Hash      string
	FromID    string
	ToID      string
	Amount    float64
	Asset     string
	Timestamp time.Time
	Direction TxDirection

	// Derived booleans, set by the Ego-Graph Builder from the endpoint
	// entities' categories.
	IsCrossBridge bool
	IsMixerHop    bool
}
