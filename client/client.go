package client

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"orderlink/config"
	"orderlink/connector"
	"orderlink/notify"
	"orderlink/offline"
	"orderlink/protocol"
	"orderlink/store"
)

// Version is reported in the hello frame and on the status endpoint.
const Version = "0.4.1"

// Client is the application-facing connector facade. It owns the
// connection manager, the notification bridge, the offline submission
// queue and the event fan-out, wired together per the configured role.
type Client struct {
	cfg       *config.Config
	db        *store.DB
	manager   *connector.Manager
	bridge    *notify.Bridge
	submitter *offline.Submitter
	syncer    *offline.Syncer
	bus       *EventBus
	hb        *Heartbeater

	mu        sync.Mutex
	loggedIn  bool
	userID    string
	started   bool
	hbStarted bool
}

// transportFactory is swapped in tests.
var transportFactory = buildTransport

// New assembles a client for the configured role and backend. The sink
// and permissioner plug in the platform notification surface; either
// may be nil for headless use.
func New(cfg *config.Config, db *store.DB, sink notify.Sink, perm notify.Permissioner) (*Client, error) {
	transport, err := transportFactory(cfg)
	if err != nil {
		return nil, err
	}

	preset := presetFor(cfg.Role)
	attempts := cfg.Realtime.MaxReconnectAttempts
	if attempts <= 0 {
		attempts = preset.MaxReconnectAttempts
	}
	mgr := connector.NewManager(connector.ManagerConfig{
		BaseDelay:            cfg.Realtime.BaseDelay,
		MaxReconnectAttempts: attempts,
	}, transport)

	api := offline.NewAPIClient(cfg.Orders.APIBaseURL, cfg.Orders.Timeout)

	c := &Client{
		cfg:     cfg,
		db:      db,
		manager: mgr,
		bridge:  notify.NewBridge(sink, perm, cfg.Notifications.MaxRecords, cfg.Notifications.SoundEnabled),
		bus:     NewEventBus(),
		userID:  cfg.UserID,
	}

	c.submitter = offline.NewSubmitter(api, db)
	c.submitter.OnQueued = func(rec *store.PendingOrder) {
		c.bridge.QueuedOffline(rec.LocalRef)
		c.bus.Emit(Event{Type: EventTypeOfflineQueue, LocalRef: rec.LocalRef})
	}

	c.syncer = offline.NewSyncer(db, api, offline.SyncConfig{
		MaxRetries: cfg.Offline.MaxRetries,
		ClaimTTL:   cfg.Offline.ClaimTTL,
		Interval:   cfg.Offline.SyncInterval,
	})
	c.syncer.OnSynced = func(localRef, orderNumber string) {
		c.bridge.Synced(localRef, orderNumber)
		c.bus.Emit(Event{Type: EventTypeOfflineQueue, LocalRef: localRef, OrderNumber: orderNumber})
	}
	c.syncer.OnFailed = func(rec *store.PendingOrder) {
		c.bridge.SyncFailed(rec.LocalRef)
		c.bus.Emit(Event{Type: EventTypeOfflineQueue, LocalRef: rec.LocalRef, SyncFailed: true})
	}

	for _, topic := range topicsFor(cfg.Role, cfg.Realtime.Backend, cfg.UserID) {
		mgr.Subscribe(topic, c.handleFrame)
	}

	mgr.OnStatusChange(c.handleStatus)

	c.hb = NewHeartbeater(mgr.Send, cfg.NodeID(), cfg.Role, cfg.UserID, cfg.Realtime.HeartbeatInterval)
	return c, nil
}

func buildTransport(cfg *config.Config) (connector.Transport, error) {
	switch cfg.Realtime.Backend {
	case "", "websocket":
		return connector.NewWebSocketTransport(cfg.Realtime.URL, cfg.Realtime.HeartbeatInterval), nil
	case "mqtt":
		return connector.NewMQTTTransport(cfg.Realtime.MQTT.Broker, cfg.Realtime.MQTT.Port,
			cfg.Realtime.MQTT.ClientID, protocol.TopicUplink, cfg.Realtime.HeartbeatInterval), nil
	case "kafka":
		return connector.NewKafkaTransport(cfg.Realtime.Kafka.Brokers, cfg.Realtime.Kafka.GroupID,
			protocol.TopicUplink), nil
	default:
		return nil, fmt.Errorf("unknown realtime backend: %s", cfg.Realtime.Backend)
	}
}

// Connect brings the realtime link up and starts the offline syncer.
// onConnected fires on every connected epoch, onError when reconnect
// attempts are exhausted. Either callback may be nil.
func (c *Client) Connect(onConnected func(), onError func(error)) error {
	c.mu.Lock()
	if !c.started {
		c.started = true
		c.syncer.Start()
	}
	c.mu.Unlock()

	if onConnected != nil || onError != nil {
		c.manager.OnStatusChange(func(s connector.Status) {
			switch s {
			case connector.StatusConnected:
				if onConnected != nil {
					onConnected()
				}
			case connector.StatusError:
				if onError != nil {
					onError(fmt.Errorf("reconnect attempts exhausted"))
				}
			}
		})
	}

	err := c.manager.Connect()
	if err != nil {
		log.Printf("client: connect: %v", err)
	}
	return err
}

// Disconnect tears the link down and stops background work. The client
// can Connect again afterwards; subscriptions survive.
func (c *Client) Disconnect() {
	c.hb.Stop()
	c.manager.Disconnect()

	c.mu.Lock()
	started := c.started
	c.started = false
	c.hbStarted = false
	c.hb = NewHeartbeater(c.manager.Send, c.cfg.NodeID(), c.cfg.Role, c.userID, c.cfg.Realtime.HeartbeatInterval)
	c.mu.Unlock()
	if started {
		c.syncer.Stop()
	}
}

// IsConnected reports whether the realtime link is currently up.
func (c *Client) IsConnected() bool {
	return c.manager.IsConnected()
}

// Status exposes the connection state for the console UI.
func (c *Client) Status() connector.Status {
	return c.manager.Status()
}

// handleStatus reacts to connection epochs: a fresh epoch kicks the
// offline syncer, an exhausted reconnect surfaces to the user.
func (c *Client) handleStatus(s connector.Status) {
	c.bus.Emit(Event{Type: EventTypeConnection, Connection: s.String()})
	switch s {
	case connector.StatusConnected:
		c.mu.Lock()
		first := !c.hbStarted
		c.hbStarted = true
		c.mu.Unlock()
		if first {
			c.hb.Start()
		} else {
			c.hb.Hello()
		}
		c.syncer.Kick()
	case connector.StatusError:
		c.bridge.ConnectionLost()
	}
}

// handleFrame routes an inbound frame by event name.
func (c *Client) handleFrame(f *protocol.Frame) {
	switch f.Event {
	case protocol.EventOrderStatus:
		var u protocol.OrderStatusUpdate
		if err := f.DecodePayload(&u); err != nil {
			log.Printf("client: decode %s: %v", f.Event, err)
			return
		}
		c.bridge.HandleOrderStatus(&u)
		c.bus.Emit(Event{Type: EventTypeOrderStatus, OrderStatus: &u})
		if protocol.StatusNeedsAck(u.Status) && c.cfg.Role == protocol.RoleKitchen {
			c.acknowledge(f.ID)
		}
	case protocol.EventOrderUpdated:
		var u protocol.OrderUpdated
		if err := f.DecodePayload(&u); err != nil {
			log.Printf("client: decode %s: %v", f.Event, err)
			return
		}
		c.bus.Emit(Event{Type: EventTypeOrderUpdated, OrderUpdated: &u})
	case protocol.EventTicketCreated:
		var tk protocol.TicketCreated
		if err := f.DecodePayload(&tk); err != nil {
			log.Printf("client: decode %s: %v", f.Event, err)
			return
		}
		c.bus.Emit(Event{Type: EventTypeTicket, Ticket: &tk})
	case protocol.EventServerError:
		var se protocol.ServerError
		if err := f.DecodePayload(&se); err != nil {
			log.Printf("client: decode %s: %v", f.Event, err)
			return
		}
		log.Printf("client: server error %s: %s", se.Code, se.Detail)
		c.bridge.Announce("Order system error", se.Detail, false)
	default:
		log.Printf("client: ignoring event %q", f.Event)
	}
}

func (c *Client) acknowledge(frameID string) {
	f, err := protocol.NewFrame(protocol.EventAcknowledge, &protocol.Acknowledge{
		ClientID: c.cfg.NodeID(),
		FrameID:  frameID,
	})
	if err != nil {
		log.Printf("client: build ack: %v", err)
		return
	}
	if err := c.manager.Send(f); err != nil {
		log.Printf("client: send ack: %v", err)
	}
}

// OnOrderUpdate registers a callback for order status changes and
// returns a function that removes it.
func (c *Client) OnOrderUpdate(fn func(*protocol.OrderStatusUpdate)) func() {
	id := c.bus.SubscribeTypes(func(e Event) {
		if e.OrderStatus != nil {
			fn(e.OrderStatus)
		}
	}, EventTypeOrderStatus)
	return func() { c.bus.Unsubscribe(id) }
}

// OnTicket registers a callback for new kitchen tickets and returns a
// removal function.
func (c *Client) OnTicket(fn func(*protocol.TicketCreated)) func() {
	id := c.bus.SubscribeTypes(func(e Event) {
		if e.Ticket != nil {
			fn(e.Ticket)
		}
	}, EventTypeTicket)
	return func() { c.bus.Unsubscribe(id) }
}

// Events exposes the bus for subscribers that want everything.
func (c *Client) Events() *EventBus {
	return c.bus
}

// Notifications exposes the notification history and read tracking.
func (c *Client) Notifications() *notify.Bridge {
	return c.bridge
}

// RequestNotificationPermission resolves the platform permission,
// prompting at most once.
func (c *Client) RequestNotificationPermission() notify.PermissionState {
	return c.bridge.Permission()
}

// SubmitOrder sends an order, falling back to the durable local queue
// when the API is unreachable.
func (c *Client) SubmitOrder(ctx context.Context, payload []byte) (*offline.Result, error) {
	return c.submitter.Submit(ctx, payload)
}

// SyncNow requests an immediate offline queue sync pass.
func (c *Client) SyncNow() {
	c.syncer.Kick()
}

// SubscribeTopic registers a raw frame callback for a topic and returns
// an id for Unsubscribe. The subscription survives reconnects.
func (c *Client) SubscribeTopic(topic string, fn func(*protocol.Frame)) connector.SubscriptionID {
	return c.manager.Subscribe(topic, fn)
}

// SubscribeToOrderStatus registers a raw callback on the shared order
// status stream.
func (c *Client) SubscribeToOrderStatus(fn func(*protocol.Frame)) connector.SubscriptionID {
	topic := protocol.TopicOrderStatus
	if c.cfg.Realtime.Backend == "" || c.cfg.Realtime.Backend == "websocket" {
		topic = protocol.EventOrderStatus
	}
	return c.manager.Subscribe(topic, fn)
}

// SubscribeToUserQueue registers a raw callback on a user's personal
// queue. Only meaningful on broker backends; on the event socket the
// server already scopes delivery per connection.
func (c *Client) SubscribeToUserQueue(userID string, fn func(*protocol.Frame)) connector.SubscriptionID {
	return c.manager.Subscribe(protocol.UserQueueTopic(userID), fn)
}

// Reconfigure applies a config mutation, persists it when the config
// came from a file, and rebuilds the transport. Requires a disconnected
// link; call Disconnect first and Connect after.
func (c *Client) Reconfigure(apply func(*config.Config)) error {
	if c.manager.IsConnected() {
		return fmt.Errorf("disconnect before reconfiguring")
	}

	c.cfg.Lock()
	apply(c.cfg)
	c.cfg.Unlock()

	transport, err := transportFactory(c.cfg)
	if err != nil {
		return err
	}
	if err := c.manager.SwapTransport(transport); err != nil {
		return err
	}

	if path := c.cfg.Path(); path != "" {
		if err := c.cfg.Save(path); err != nil {
			log.Printf("client: save config: %v", err)
		}
	}
	return nil
}

// Unsubscribe removes a SubscribeTopic registration.
func (c *Client) Unsubscribe(id connector.SubscriptionID) {
	c.manager.Unsubscribe(id)
}

// Login binds a user identity to the session, subscribes to that user's
// personal queue on broker backends, and brings the link up if it is
// down. The connection lifecycle follows the auth state explicitly.
func (c *Client) Login(userID string) {
	c.mu.Lock()
	already := c.loggedIn && c.userID == userID
	c.loggedIn = true
	c.userID = userID
	c.mu.Unlock()
	if already {
		return
	}

	if c.cfg.Realtime.Backend != "" && c.cfg.Realtime.Backend != "websocket" && userID != "" {
		c.manager.Subscribe(protocol.UserQueueTopic(userID), c.handleFrame)
	}
	if !c.manager.IsConnected() {
		if err := c.Connect(nil, nil); err != nil {
			log.Printf("client: connect on login: %v", err)
		}
	}
}

// Logout clears the user identity. Customer sessions also drop the
// link; staff surfaces keep it up for the shared displays.
func (c *Client) Logout() {
	c.mu.Lock()
	c.loggedIn = false
	c.userID = ""
	c.mu.Unlock()
	if c.cfg.Role == protocol.RoleCustomer {
		c.Disconnect()
	}
}

// LoggedIn reports whether a user identity is bound.
func (c *Client) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedIn
}

// Uptime-style snapshot for the status endpoint.
type Snapshot struct {
	Status         string    `json:"status"`
	Role           string    `json:"role"`
	Backend        string    `json:"backend"`
	Version        string    `json:"version"`
	QueuedOutbound int       `json:"queued_outbound"`
	PendingOffline int       `json:"pending_offline"`
	Unread         int       `json:"unread_notifications"`
	Time           time.Time `json:"time"`
}

// Snapshot gathers the state the operator console shows at a glance.
func (c *Client) Snapshot() Snapshot {
	pending, err := c.db.CountUnsynced()
	if err != nil {
		log.Printf("client: count unsynced: %v", err)
	}
	backend := c.cfg.Realtime.Backend
	if backend == "" {
		backend = "websocket"
	}
	return Snapshot{
		Status:         c.manager.Status().String(),
		Role:           c.cfg.Role,
		Backend:        backend,
		Version:        Version,
		QueuedOutbound: c.manager.QueuedOutbound(),
		PendingOffline: pending,
		Unread:         c.bridge.UnreadCount(),
		Time:           time.Now(),
	}
}
