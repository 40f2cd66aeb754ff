package notify

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"orderlink/protocol"
)

// Sink delivers a notification to the platform surface, whatever that
// is for the install (desktop toast, web push, terminal bell).
type Sink interface {
	Show(n Notification) error
}

// PermissionState tracks the platform notification permission.
type PermissionState int

const (
	PermissionUnknown PermissionState = iota
	PermissionGranted
	PermissionDenied
)

func (s PermissionState) String() string {
	switch s {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Permissioner asks the platform for notification permission.
type Permissioner interface {
	Request() PermissionState
}

// Notification is one rendered alert plus its record-keeping fields.
type Notification struct {
	ID          string    `json:"id"`
	OrderUUID   string    `json:"order_uuid,omitempty"`
	OrderNumber string    `json:"order_number,omitempty"`
	Status      string    `json:"status,omitempty"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Persistent  bool      `json:"persistent"`
	Sound       bool      `json:"sound"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

type statusPolicy struct {
	title      string
	persistent bool
	sound      bool
}

// Ready is the call-to-action status: it stays on screen and chimes.
// Everything else is informational and auto-dismisses quietly.
var statusPolicies = map[string]statusPolicy{
	protocol.StatusReceived:  {title: "Order received"},
	protocol.StatusConfirmed: {title: "Order confirmed"},
	protocol.StatusPreparing: {title: "Order in preparation"},
	protocol.StatusReady:     {title: "Order ready", persistent: true, sound: true},
	protocol.StatusCompleted: {title: "Order completed"},
	protocol.StatusCancelled: {title: "Order cancelled"},
	protocol.StatusFailed:    {title: "Order failed"},
}

// Bridge turns order status events into user notifications and keeps a
// bounded in-memory history of what was shown.
type Bridge struct {
	mu           sync.Mutex
	sink         Sink
	perm         Permissioner
	permState    PermissionState
	maxRecords   int
	soundEnabled bool
	records      []*Notification // oldest first
	seen         map[string]bool // orderUUID|status transitions already announced
	retired      []string        // terminal keys still in seen, oldest first
	retiredCap   int
}

func NewBridge(sink Sink, perm Permissioner, maxRecords int, soundEnabled bool) *Bridge {
	if maxRecords <= 0 {
		maxRecords = 100
	}
	return &Bridge{
		sink:         sink,
		perm:         perm,
		maxRecords:   maxRecords,
		soundEnabled: soundEnabled,
		seen:         make(map[string]bool),
		retiredCap:   4 * maxRecords,
	}
}

// HandleOrderStatus announces a status transition. A transition already
// announced for the same order is dropped, so redelivered events after
// a reconnect stay silent.
func (b *Bridge) HandleOrderStatus(u *protocol.OrderStatusUpdate) {
	if u == nil || u.OrderUUID == "" {
		return
	}
	if !protocol.IsKnownStatus(u.Status) {
		log.Printf("notify: unknown order status %q for %s", u.Status, u.OrderUUID)
		return
	}

	b.mu.Lock()
	key := u.OrderUUID + "|" + u.Status
	if b.seen[key] {
		b.mu.Unlock()
		return
	}
	b.seen[key] = true
	if protocol.IsTerminal(u.Status) {
		b.pruneSeenLocked(u.OrderUUID, key)
	}

	pol := statusPolicies[u.Status]
	body := fmt.Sprintf("Order %s is %s", displayNumber(u), u.Status)
	if u.Detail != "" {
		body += ": " + u.Detail
	}
	n := Notification{
		ID:          uuid.New().String(),
		OrderUUID:   u.OrderUUID,
		OrderNumber: u.OrderNumber,
		Status:      u.Status,
		Title:       pol.title,
		Body:        body,
		Persistent:  pol.persistent,
		Sound:       pol.sound && b.soundEnabled,
		CreatedAt:   time.Now(),
	}
	b.appendLocked(n)
	b.mu.Unlock()

	b.show(n)
}

// Announce records and shows a notification outside the order status
// flow, such as connectivity or sync alerts.
func (b *Bridge) Announce(title, body string, persistent bool) {
	n := Notification{
		ID:         uuid.New().String(),
		Title:      title,
		Body:       body,
		Persistent: persistent,
		CreatedAt:  time.Now(),
	}
	b.mu.Lock()
	b.appendLocked(n)
	b.mu.Unlock()
	b.show(n)
}

// ConnectionLost announces that reconnection attempts are exhausted and
// a manual refresh is needed.
func (b *Bridge) ConnectionLost() {
	b.Announce("Connection lost", "Live order updates are unavailable. Refresh to reconnect.", true)
}

// QueuedOffline announces that an order was captured locally.
func (b *Bridge) QueuedOffline(localRef string) {
	b.Announce("Order saved", "You appear to be offline. The order will be sent when the connection returns.", false)
	_ = localRef
}

// Synced announces that a locally queued order reached the server.
func (b *Bridge) Synced(localRef, orderNumber string) {
	b.Announce("Order sent", fmt.Sprintf("Your saved order is now %s.", orderNumber), false)
	_ = localRef
}

// SyncFailed announces that a queued order could not be delivered.
func (b *Bridge) SyncFailed(localRef string) {
	b.Announce("Order not sent", "A saved order could not be delivered. Staff attention is needed.", true)
	_ = localRef
}

func displayNumber(u *protocol.OrderStatusUpdate) string {
	if u.OrderNumber != "" {
		return u.OrderNumber
	}
	if len(u.OrderUUID) >= 8 {
		return strings.ToUpper(u.OrderUUID[:8])
	}
	return u.OrderUUID
}

// appendLocked adds a record, dropping the oldest past the cap.
func (b *Bridge) appendLocked(n Notification) {
	b.records = append(b.records, &n)
	if over := len(b.records) - b.maxRecords; over > 0 {
		b.records = append([]*Notification(nil), b.records[over:]...)
	}
}

// pruneSeenLocked drops dedupe entries for an order that reached a
// terminal status. The terminal key itself is retained so late
// duplicates of the final event stay suppressed, but only for the most
// recent retiredCap completed orders; older keys are evicted so the
// map stays bounded on a long-running display.
func (b *Bridge) pruneSeenLocked(orderUUID, keep string) {
	prefix := orderUUID + "|"
	for k := range b.seen {
		if k != keep && strings.HasPrefix(k, prefix) {
			delete(b.seen, k)
		}
	}
	b.retired = append(b.retired, keep)
	if over := len(b.retired) - b.retiredCap; over > 0 {
		for _, k := range b.retired[:over] {
			delete(b.seen, k)
		}
		b.retired = append([]string(nil), b.retired[over:]...)
	}
}

func (b *Bridge) show(n Notification) {
	if b.sink == nil {
		return
	}
	if b.Permission() != PermissionGranted {
		return
	}
	if err := b.sink.Show(n); err != nil {
		log.Printf("notify: show: %v", err)
	}
}

// Permission returns the current permission, asking the platform once
// on first use. A denial is final; the user is never re-prompted.
func (b *Bridge) Permission() PermissionState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.permState == PermissionUnknown && b.perm != nil {
		b.permState = b.perm.Request()
	}
	return b.permState
}

// Records returns the notification history, newest first.
func (b *Bridge) Records() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Notification, 0, len(b.records))
	for i := len(b.records) - 1; i >= 0; i-- {
		out = append(out, *b.records[i])
	}
	return out
}

// UnreadCount returns how many records have not been marked read.
func (b *Bridge) UnreadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.records {
		if !r.Read {
			n++
		}
	}
	return n
}

// MarkRead marks one record read. Returns false if the id is unknown.
func (b *Bridge) MarkRead(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.records {
		if r.ID == id {
			r.Read = true
			return true
		}
	}
	return false
}

// MarkAllRead marks every record read.
func (b *Bridge) MarkAllRead() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.records {
		r.Read = true
	}
}
