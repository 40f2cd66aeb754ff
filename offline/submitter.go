package offline

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	"orderlink/store"
)

// Result describes the outcome of an order submission. Exactly one of
// OrderNumber or LocalRef is set: OrderNumber when the API accepted the
// order, LocalRef when it was captured locally for later sync.
type Result struct {
	Queued      bool   `json:"queued"`
	OrderNumber string `json:"order_number,omitempty"`
	LocalRef    string `json:"local_ref,omitempty"`
}

// Submitter tries the order API first and falls back to the durable
// local queue when the server cannot be reached.
type Submitter struct {
	api *APIClient
	db  *store.DB

	// OnQueued fires after a submission is persisted locally, before
	// Submit returns. Optional.
	OnQueued func(*store.PendingOrder)
}

func NewSubmitter(api *APIClient, db *store.DB) *Submitter {
	return &Submitter{api: api, db: db}
}

// Submit sends an order to the API. On a transport failure or a server
// error the payload is persisted and an optimistic placeholder is
// returned; a definitive client-side rejection propagates unchanged.
func (s *Submitter) Submit(ctx context.Context, payload []byte) (*Result, error) {
	orderNumber, err := s.api.CreateOrder(ctx, payload)
	if err == nil {
		return &Result{OrderNumber: orderNumber}, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Permanent() {
		return nil, err
	}

	// Server unreachable or failing. Capture the submission exactly as
	// composed so the sync pass can replay it verbatim.
	localRef := uuid.New().String()
	id, insErr := s.db.InsertPendingOrder(localRef, payload)
	if insErr != nil {
		// Persist failed too, nothing to fall back on.
		return nil, insErr
	}
	log.Printf("offline: queued order submission %s (api: %v)", localRef, err)

	if s.OnQueued != nil {
		if rec, getErr := s.db.GetPendingOrder(id); getErr == nil {
			s.OnQueued(rec)
		}
	}
	return &Result{Queued: true, LocalRef: localRef}, nil
}
