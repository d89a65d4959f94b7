package memory

import (
	"context"
	"sync"
	"time"

	"turnstile/contexts/request-integrity/payment-intent-service/domain/entities"
	domainerrors "turnstile/contexts/request-integrity/payment-intent-service/domain/errors"
	"turnstile/contexts/request-integrity/payment-intent-service/ports"

	"github.com/google/uuid"
)

type Store struct {
	mu      sync.RWMutex
	intents map[string]entities.PaymentIntent
}

func NewStore() *Store {
	return &Store{intents: make(map[string]entities.PaymentIntent)}
}

func (s *Store) CreateIntent(_ context.Context, intent entities.PaymentIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents[intent.ID] = intent
	return nil
}

func (s *Store) GetIntent(_ context.Context, intentID string) (entities.PaymentIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	intent, ok := s.intents[intentID]
	if !ok {
		return entities.PaymentIntent{}, domainerrors.ErrIntentNotFound
	}
	return intent, nil
}

// Count reports how many intents were created; tests use it to prove a
// handler ran at most once.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.intents)
}

func (s *Store) Now() time.Time { return time.Now().UTC() }

func (s *Store) NewID(context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.PaymentIntentRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
