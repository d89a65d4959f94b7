package keyselect

import (
	"context"
	"fmt"
	"strings"

	"turnstile/contexts/request-integrity/idempotency-service/domain/entities"
	domainerrors "turnstile/contexts/request-integrity/idempotency-service/domain/errors"
	"turnstile/contexts/request-integrity/idempotency-service/ports"

	"github.com/google/uuid"
)

// DefaultHeaderName carries the client-chosen idempotency key.
const DefaultHeaderName = "Idempotency-Key"

// HeaderSelector is the default key strategy: read one dedicated header and
// validate it against the table's key type. A missing header is absence, not
// an error; a present but malformed value is rejected before any store access.
type HeaderSelector struct {
	HeaderName string
}

func (s HeaderSelector) SelectKey(_ context.Context, table entities.ClaimTable, req ports.RequestInfo) (ports.SelectedKey, error) {
	name := s.HeaderName
	if name == "" {
		name = DefaultHeaderName
	}

	raw := strings.TrimSpace(req.Header(name))
	if raw == "" {
		return ports.SelectedKey{}, nil
	}

	switch table.KeyType {
	case entities.KeyTypeGuid:
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return ports.SelectedKey{}, fmt.Errorf("%w: %q", domainerrors.ErrMalformedIdempotencyKey, raw)
		}
		return ports.SelectedKey{Value: parsed.String(), Present: true}, nil
	case entities.KeyTypeString:
		if len(raw) > entities.MaxStringKeyLength {
			return ports.SelectedKey{}, fmt.Errorf("%w: longer than %d characters", domainerrors.ErrMalformedIdempotencyKey, entities.MaxStringKeyLength)
		}
		return ports.SelectedKey{Value: raw, Present: true}, nil
	default:
		return ports.SelectedKey{}, fmt.Errorf("%w: %q", domainerrors.ErrInvalidKeyType, table.KeyType)
	}
}

var _ ports.KeySelector = HeaderSelector{}
