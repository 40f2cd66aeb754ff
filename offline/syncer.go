package offline

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"orderlink/store"
)

// SyncConfig bounds the replay of queued submissions.
type SyncConfig struct {
	MaxRetries int           // attempts before a record is parked as failed
	ClaimTTL   time.Duration // how long an in-flight claim blocks other workers
	Interval   time.Duration // background pass cadence
}

func (c *SyncConfig) setDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.ClaimTTL <= 0 {
		c.ClaimTTL = time.Minute
	}
	if c.Interval <= 0 {
		c.Interval = 15 * time.Second
	}
}

// Syncer replays queued order submissions when connectivity returns.
// Each record gets independent attempts; one bad record never blocks
// the rest of the queue.
type Syncer struct {
	db  *store.DB
	api *APIClient
	cfg SyncConfig

	// OnSynced fires when a queued submission lands, carrying the local
	// placeholder reference and the server-assigned order number so the
	// UI can swap identifiers. Optional.
	OnSynced func(localRef, orderNumber string)
	// OnFailed fires when a record exhausts its retries. Optional.
	OnFailed func(*store.PendingOrder)

	kick chan struct{}

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewSyncer(db *store.DB, api *APIClient, cfg SyncConfig) *Syncer {
	cfg.setDefaults()
	return &Syncer{
		db:   db,
		api:  api,
		cfg:  cfg,
		kick: make(chan struct{}, 1),
	}
}

// Start begins the background sync loop. The syncer is restartable: a
// Stop followed by Start gives a fresh loop, so a disconnect/connect
// cycle keeps both sync triggers alive.
func (s *Syncer) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	stop := s.stopChan
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(stop)
}

// Stop halts the sync loop and waits for an in-flight pass to finish.
func (s *Syncer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()
	s.wg.Wait()
}

// Kick requests an immediate sync pass. Safe to call from connectivity
// callbacks; coalesces when a pass is already pending.
func (s *Syncer) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Syncer) loop(stop chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-s.kick:
			s.syncPass(stop)
		case <-ticker.C:
			s.syncPass(stop)
		}
	}
}

func (s *Syncer) syncPass(stop chan struct{}) {
	pending, err := s.db.ListUnsynced()
	if err != nil {
		log.Printf("offline: list unsynced: %v", err)
		return
	}

	for _, rec := range pending {
		select {
		case <-stop:
			return
		default:
		}
		s.syncOne(rec, stop)
	}
}

func (s *Syncer) syncOne(rec *store.PendingOrder, stop chan struct{}) {
	ok, err := s.db.ClaimPendingOrder(rec.ID, s.cfg.ClaimTTL)
	if err != nil {
		log.Printf("offline: claim %s: %v", rec.LocalRef, err)
		return
	}
	if !ok {
		// Another worker holds the claim.
		return
	}

	// A stop landing between the claim and the request would strand
	// the claim until its TTL expires. Hand it back instead.
	select {
	case <-stop:
		if err := s.db.ReleasePendingOrder(rec.ID); err != nil {
			log.Printf("offline: release %s: %v", rec.LocalRef, err)
		}
		return
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	orderNumber, err := s.api.CreateOrder(ctx, rec.Payload)
	if err == nil {
		if err := s.db.MarkSynced(rec.ID, orderNumber); err != nil {
			log.Printf("offline: mark synced %s: %v", rec.LocalRef, err)
			return
		}
		log.Printf("offline: synced %s as %s", rec.LocalRef, orderNumber)
		if s.OnSynced != nil {
			s.OnSynced(rec.LocalRef, orderNumber)
		}
		return
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Permanent() {
		// The server will never accept this payload. Park it for
		// operator review instead of burning retries.
		log.Printf("offline: %s rejected permanently: %v", rec.LocalRef, err)
		s.parkFailed(rec)
		return
	}

	count, incErr := s.db.IncrementSyncRetry(rec.ID)
	if incErr != nil {
		log.Printf("offline: increment retry %s: %v", rec.LocalRef, incErr)
		return
	}
	log.Printf("offline: sync %s attempt %d failed: %v", rec.LocalRef, count, err)
	if count >= s.cfg.MaxRetries {
		s.parkFailed(rec)
	}
}

func (s *Syncer) parkFailed(rec *store.PendingOrder) {
	if err := s.db.MarkSyncFailed(rec.ID); err != nil {
		log.Printf("offline: mark failed %s: %v", rec.LocalRef, err)
		return
	}
	if s.OnFailed != nil {
		if fresh, err := s.db.GetPendingOrder(rec.ID); err == nil {
			s.OnFailed(fresh)
		}
	}
}
