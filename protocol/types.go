package protocol

// Event name constants for the unified wire protocol. The generic event
// socket (Variant A) carries these as the frame's event field; the broker
// transports (Variant B) publish each event class on its own topic.
const (
	// Server -> Client
	EventOrderStatus   = "order_status"
	EventOrderUpdated  = "order_updated"
	EventTicketCreated = "ticket_created"
	EventServerError   = "error"

	// Client -> Server
	EventClientHello     = "client_hello"
	EventClientHeartbeat = "client_heartbeat"
	EventAcknowledge     = "ack"
)

// Topic destinations for the broker transports.
const (
	TopicOrderStatus = "pos/orders/status"
	TopicKitchen     = "pos/kitchen/tickets"
	TopicUplink      = "pos/uplink"
)

// UserQueueTopic returns the per-user destination for direct notifications.
func UserQueueTopic(userID string) string {
	return "pos/users/" + userID + "/queue"
}

// Client roles.
const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
	RoleKitchen  = "kitchen"
)

// Order statuses as reported by the backend.
const (
	StatusReceived  = "received"
	StatusConfirmed = "confirmed"
	StatusPreparing = "preparing"
	StatusReady     = "ready"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

var knownStatuses = map[string]struct{}{
	StatusReceived:  {},
	StatusConfirmed: {},
	StatusPreparing: {},
	StatusReady:     {},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusFailed:    {},
}

// IsKnownStatus reports whether s is a status this client understands.
// Unknown statuses still reach raw subscribers but produce no notification.
func IsKnownStatus(s string) bool {
	_, ok := knownStatuses[s]
	return ok
}

// IsTerminal returns true if the status ends the order lifecycle.
func IsTerminal(s string) bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// StatusNeedsAck reports whether display clients should confirm receipt
// of the status back to the server.
func StatusNeedsAck(s string) bool {
	return s == StatusReady
}

// Protocol version.
const Version = 1
