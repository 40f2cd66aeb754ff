package protocol

// --- Server -> Client payloads ---

// OrderStatusUpdate announces an order's status transition.
type OrderStatusUpdate struct {
	OrderUUID      string `json:"order_uuid"`
	OrderNumber    string `json:"order_number"`
	Status         string `json:"status"`
	Detail         string `json:"detail,omitempty"`
	TableNumber    string `json:"table_number,omitempty"`
	EstimatedReady string `json:"estimated_ready,omitempty"`
}

// OrderUpdated signals that the order document changed (items, totals) and
// the client should refetch it.
type OrderUpdated struct {
	OrderUUID   string `json:"order_uuid"`
	OrderNumber string `json:"order_number"`
}

// TicketCreated announces a new kitchen ticket for display clients.
type TicketCreated struct {
	TicketID    string       `json:"ticket_id"`
	OrderUUID   string       `json:"order_uuid"`
	OrderNumber string       `json:"order_number"`
	Station     string       `json:"station"`
	TableNumber string       `json:"table_number,omitempty"`
	Notes       string       `json:"notes,omitempty"`
	Items       []TicketItem `json:"items"`
}

// TicketItem is one line on a kitchen ticket.
type TicketItem struct {
	Name      string   `json:"name"`
	Quantity  int      `json:"quantity"`
	Modifiers []string `json:"modifiers,omitempty"`
}

// ServerError is an explicit application-level error frame. It is routed
// like any inbound event and never affects connection state.
type ServerError struct {
	Code      string `json:"code"`
	Detail    string `json:"detail"`
	OrderUUID string `json:"order_uuid,omitempty"`
}

// --- Client -> Server payloads ---

// ClientHello identifies the client on connect.
type ClientHello struct {
	ClientID string `json:"client_id"`
	Role     string `json:"role"`
	UserID   string `json:"user_id,omitempty"`
	Version  string `json:"version"`
}

// ClientHeartbeat is the periodic presence report on the uplink.
type ClientHeartbeat struct {
	ClientID string `json:"client_id"`
	Role     string `json:"role"`
	Uptime   int64  `json:"uptime"`
}

// Acknowledge confirms receipt of a high-salience event (e.g. an order
// marked ready acknowledged by the kitchen display operator).
type Acknowledge struct {
	ClientID string `json:"client_id"`
	FrameID  string `json:"frame_id"`
}
