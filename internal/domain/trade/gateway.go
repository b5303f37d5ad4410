package trade

import (
	"context"
	"encoding/json"
	"time"
)

// GatewayMode tells which persistence variant a gateway uses
type GatewayMode string

const (
	GatewayModeRemote GatewayMode = "remote"
	GatewayModeLocal  GatewayMode = "local"
)

// Source values reported in SubmitResult
const (
	SourceRemote       = "remote"
	SourceLocalStorage = "localStorage"
)

// SubmitResult describes a successful submission
type SubmitResult struct {
	OK     bool              `json:"ok"`
	Source string            `json:"source"`
	Data   *SubmissionRecord `json:"data,omitempty"`
	// Raw is the remote response body, opaque to the engine
	Raw json.RawMessage `json:"-"`
}

// ListQuery are the list parameters of the read endpoints
type ListQuery struct {
	Page int
	Size int
	Q    string
}

// IsZero reports whether no parameter is set
func (q ListQuery) IsZero() bool {
	return q.Page <= 0 && q.Size <= 0 && q.Q == ""
}

// SubmissionGateway persists submission records. Its mode is fixed for the
// lifetime of the instance; there is no fallback from remote to local.
//
// Failures are *shared.SubmissionError values of kind transport (remote)
// or storage (local); both match shared.ErrSubmissionFailed.
type SubmissionGateway interface {
	Mode() GatewayMode
	Direction() Direction
	Submit(ctx context.Context, record SubmissionRecord) (*SubmitResult, error)
	// GetByID returns nil, nil when a local record does not exist
	GetByID(ctx context.Context, id string) (*SubmissionRecord, error)
	List(ctx context.Context, query ListQuery) ([]SubmissionRecord, error)
}

// KeyValueStore is the durable storage capability behind the local
// fallback gateway
type KeyValueStore interface {
	// Get returns the value for key and whether it exists
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Locker serializes read-modify-write cycles on a key across processes
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(ctx context.Context) error, err error)
}

// DocumentNumberGenerator issues a new document number for each order
type DocumentNumberGenerator interface {
	Next(direction Direction, at time.Time) string
}

// DocumentNumberFunc adapts a function to DocumentNumberGenerator
type DocumentNumberFunc func(direction Direction, at time.Time) string

// Next calls f
func (f DocumentNumberFunc) Next(direction Direction, at time.Time) string {
	return f(direction, at)
}
