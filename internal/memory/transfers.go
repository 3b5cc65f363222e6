package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
)

type requestKey struct {
	actor     uuid.UUID
	requestID string
}

// TransferRepository implements domain.TransferRepository in memory.
type TransferRepository struct {
	mu        sync.RWMutex
	transfers map[requestKey]domain.Transfer
}

// NewTransferRepository creates an empty TransferRepository.
func NewTransferRepository() *TransferRepository {
	return &TransferRepository{transfers: make(map[requestKey]domain.Transfer)}
}

// Create stores a transfer, unique per actor and request id.
func (r *TransferRepository) Create(ctx context.Context, transfer *domain.Transfer) error {
	key := requestKey{transfer.ActorID, transfer.RequestID}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.transfers[key]; exists {
		return domain.ErrDuplicateTransfer
	}
	r.transfers[key] = *transfer

	onRollback(ctx, func() {
		r.mu.Lock()
		delete(r.transfers, key)
		r.mu.Unlock()
	})
	return nil
}

// GetByRequestID returns the stored transfer or nil.
func (r *TransferRepository) GetByRequestID(_ context.Context, actorID uuid.UUID, requestID string) (*domain.Transfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transfers[requestKey{actorID, requestID}]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// Len returns the number of stored transfers.
func (r *TransferRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.transfers)
}
