package client

import "orderlink/protocol"

// RolePreset is the per-role tuning applied when the config leaves a
// knob at zero.
type RolePreset struct {
	MaxReconnectAttempts int
}

// Customer sessions are short-lived; give up sooner and tell the user
// to refresh. Staff surfaces run all day and fight harder.
var rolePresets = map[string]RolePreset{
	protocol.RoleCustomer: {MaxReconnectAttempts: 5},
	protocol.RoleAdmin:    {MaxReconnectAttempts: 10},
	protocol.RoleKitchen:  {MaxReconnectAttempts: 10},
}

func presetFor(role string) RolePreset {
	if p, ok := rolePresets[role]; ok {
		return p
	}
	return rolePresets[protocol.RoleCustomer]
}

// topicsFor returns the subscriptions a role needs. Broker backends
// subscribe to shared destination topics; the event socket multiplexes
// everything on one connection, so its topics are event names.
func topicsFor(role, backend, userID string) []string {
	if backend == "websocket" {
		switch role {
		case protocol.RoleKitchen:
			return []string{protocol.EventOrderStatus, protocol.EventOrderUpdated, protocol.EventTicketCreated}
		case protocol.RoleAdmin:
			return []string{protocol.EventOrderStatus, protocol.EventOrderUpdated, protocol.EventTicketCreated, protocol.EventServerError}
		default:
			return []string{protocol.EventOrderStatus, protocol.EventOrderUpdated}
		}
	}

	switch role {
	case protocol.RoleKitchen:
		return []string{protocol.TopicKitchen, protocol.TopicOrderStatus}
	case protocol.RoleAdmin:
		return []string{protocol.TopicOrderStatus, protocol.TopicKitchen, protocol.TopicUplink}
	default:
		topics := []string{protocol.TopicOrderStatus}
		if userID != "" {
			topics = append(topics, protocol.UserQueueTopic(userID))
		}
		return topics
	}
}
