package keyselect

import (
	"context"
	"errors"
	"strings"
	"testing"

	"turnstile/contexts/request-integrity/idempotency-service/domain/entities"
	domainerrors "turnstile/contexts/request-integrity/idempotency-service/domain/errors"
	"turnstile/contexts/request-integrity/idempotency-service/ports"
)

func guidTable() entities.ClaimTable {
	return entities.ClaimTable{Name: "Keys", KeyType: entities.KeyTypeGuid}
}

func request(header string, value string) ports.RequestInfo {
	headers := map[string][]string{}
	if value != "" {
		headers[header] = []string{value}
	}
	return ports.RequestInfo{Method: "POST", Path: "/v1/things", Headers: headers}
}

func TestSelectKeyAcceptsWellFormedGuid(t *testing.T) {
	selected, err := HeaderSelector{}.SelectKey(context.Background(), guidTable(),
		request("Idempotency-Key", "3fa85f64-5717-4562-b3fc-2c963f66afa6"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !selected.Present || selected.Value != "3fa85f64-5717-4562-b3fc-2c963f66afa6" {
		t.Fatalf("unexpected selection: %+v", selected)
	}
}

func TestSelectKeyRejectsMalformedGuid(t *testing.T) {
	_, err := HeaderSelector{}.SelectKey(context.Background(), guidTable(),
		request("Idempotency-Key", "not-a-guid"))
	if !errors.Is(err, domainerrors.ErrMalformedIdempotencyKey) {
		t.Fatalf("expected ErrMalformedIdempotencyKey, got %v", err)
	}
}

func TestSelectKeyAbsentHeaderIsNotAnError(t *testing.T) {
	selected, err := HeaderSelector{}.SelectKey(context.Background(), guidTable(),
		request("Idempotency-Key", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if selected.Present {
		t.Fatal("absent header must select no key")
	}
}

func TestSelectKeyStringTypeEnforcesMaxLength(t *testing.T) {
	table := entities.ClaimTable{Name: "Keys", KeyType: entities.KeyTypeString}

	long := strings.Repeat("k", entities.MaxStringKeyLength+1)
	_, err := HeaderSelector{}.SelectKey(context.Background(), table, request("Idempotency-Key", long))
	if !errors.Is(err, domainerrors.ErrMalformedIdempotencyKey) {
		t.Fatalf("expected ErrMalformedIdempotencyKey for oversized key, got %v", err)
	}

	selected, err := HeaderSelector{}.SelectKey(context.Background(), table, request("Idempotency-Key", "order-42"))
	if err != nil || !selected.Present || selected.Value != "order-42" {
		t.Fatalf("short string key must pass: %+v err=%v", selected, err)
	}
}

func TestSelectKeyCustomHeaderName(t *testing.T) {
	selector := HeaderSelector{HeaderName: "X-Dedup-Key"}
	selected, err := selector.SelectKey(context.Background(), guidTable(),
		request("X-Dedup-Key", "3fa85f64-5717-4562-b3fc-2c963f66afa6"))
	if err != nil || !selected.Present {
		t.Fatalf("custom header must be honored: %+v err=%v", selected, err)
	}
}
