package ws

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// AllServers subscribes a client to events from every control plane.
const AllServers = "*"

// Hub fans reconcile events out to subscribers keyed by server ID.
type Hub struct {
	clients   map[string]map[Subscriber]struct{}
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
}

// message couples payload with the originating server.
type message struct {
	serverID string
	payload  []byte
}

// subscription defines register/unregister requests.
type subscription struct {
	serverID string
	client   Subscriber
}

// NewHub creates an initialized Hub.
func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[string]map[Subscriber]struct{}),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case sub := <-h.register:
			if _, ok := h.clients[sub.serverID]; !ok {
				h.clients[sub.serverID] = make(map[Subscriber]struct{})
			}
			h.clients[sub.serverID][sub.client] = struct{}{}
		case sub := <-h.unreg:
			if clients, ok := h.clients[sub.serverID]; ok {
				delete(clients, sub.client)
				if len(clients) == 0 {
					delete(h.clients, sub.serverID)
				}
			}
		case msg := <-h.broadcast:
			h.deliver(msg.serverID, msg.payload)
			if msg.serverID != AllServers {
				h.deliver(AllServers, msg.payload)
			}
		}
	}
}

func (h *Hub) deliver(key string, payload []byte) {
	clients, ok := h.clients[key]
	if !ok {
		return
	}
	for c := range clients {
		if err := c.Send(payload); err != nil {
			c.Close()
			delete(clients, c)
		}
	}
	if len(clients) == 0 {
		delete(h.clients, key)
	}
}

// Register adds a client to a server's event stream. Use AllServers to
// subscribe across every server.
func (h *Hub) Register(serverID string, client Subscriber) {
	h.register <- subscription{serverID: serverID, client: client}
}

// Unregister removes a client.
func (h *Hub) Unregister(serverID string, client Subscriber) {
	h.unreg <- subscription{serverID: serverID, client: client}
}

// Broadcast sends payload to the server's subscribers and to wildcard
// subscribers.
func (h *Hub) Broadcast(serverID string, payload []byte) {
	h.broadcast <- message{serverID: serverID, payload: payload}
}
