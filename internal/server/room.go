package server

// Room is the set of local connections subscribed to one chat or to one
// user's personal channel. Rooms are owned by the ChatServer loop.
type Room struct {
	id      string
	clients map[*Client]struct{}
}

func newRoom(id string) *Room {
	return &Room{
		id:      id,
		clients: make(map[*Client]struct{}),
	}
}

func (r *Room) add(c *Client) {
	r.clients[c] = struct{}{}
}

func (r *Room) remove(c *Client) {
	delete(r.clients, c)
}

func (r *Room) has(c *Client) bool {
	_, ok := r.clients[c]
	return ok
}

func (r *Room) empty() bool {
	return len(r.clients) == 0
}

// broadcast queues msg on every subscribed connection and returns the
// number of connections whose buffer was full.
func (r *Room) broadcast(msg *ServerMessage) int {
	var dropped int
	for c := range r.clients {
		if !c.queueMessage(msg) {
			dropped++
		}
	}
	return dropped
}
