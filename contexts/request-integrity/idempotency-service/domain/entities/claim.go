package entities

// KeyType selects the physical primary-key shape of a claim table.
type KeyType string

const (
	// KeyTypeGuid stores keys as 128-bit identifiers; header values must
	// parse as UUIDs before they reach the store.
	KeyTypeGuid KeyType = "guid"
	// KeyTypeString stores keys as short opaque strings.
	KeyTypeString KeyType = "string"
)

// MaxStringKeyLength bounds KeyTypeString keys; the column is varchar(50).
const MaxStringKeyLength = 50

// SchemaName is the namespace every claim table lives in.
const SchemaName = "idempotency"

// ClaimTable is the frozen per-table policy resolved at registry build time.
type ClaimTable struct {
	Name                   string
	ConnectionTarget       string
	KeyType                KeyType
	PrimaryKeyClustered    bool
	IdempotencyKeyRequired bool
	ThrowOnConflict        bool
}

// ClaimRecord is one row of a claim table. Lifecycle status is implicit:
// a row with Response and StatusCode unset is Pending, a row with both set is
// Completed. There is no separate status column.
type ClaimRecord struct {
	Key        string
	Response   *string
	StatusCode *int
}

func (r ClaimRecord) Completed() bool {
	return r.Response != nil && r.StatusCode != nil
}

// GuardedResponse is the transport-agnostic outcome of a guarded handler,
// captured once at finalize time and replayed verbatim to later duplicates.
type GuardedResponse struct {
	StatusCode int
	Body       string
}
