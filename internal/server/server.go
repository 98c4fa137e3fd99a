package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/saschahuberzh/SeoulChat/internal/stats"
	"github.com/saschahuberzh/SeoulChat/internal/types"
)

const (
	presenceTimeout = 5 * time.Second
	publishTimeout  = 5 * time.Second
)

var ErrServerClosed = errors.New("chat server closed")

// Store is the persistence used by the realtime channel.
type Store interface {
	ListChatIdsForUser(ctx context.Context, userId string) ([]string, error)
	UpdatePresence(ctx context.Context, userId string, status types.Status, lastSeen time.Time) error
}

type registration struct {
	client *Client
	rooms  []string
}

type roomRequest struct {
	client *Client
	id     int
	chatId string
	join   bool
}

type presenceUpdate struct {
	userId string
	status types.Status
	at     time.Time
}

// ChatServer is the realtime hub. Its maps are owned by the Run goroutine
// and only changed through channels.
type ChatServer struct {
	log            zerolog.Logger
	store          Store
	broker         Broker
	stats          stats.StatsProvider
	clients        map[*Client]struct{}
	userMap        map[string]map[*Client]struct{}
	rooms          map[string]*Room
	registerChan   chan *registration
	deRegisterChan chan *Client
	roomChan       chan *roomRequest
	presenceChan   chan presenceUpdate
	presenceDone   chan struct{}
	stop           chan struct{}
	stopOnce       sync.Once
	done           chan struct{}
}

func NewChatServer(logger zerolog.Logger, store Store, broker Broker, su stats.StatsProvider) *ChatServer {
	if broker == nil {
		broker = NewLocalBroker()
	}

	for _, name := range []string{
		stats.ConnectionsActive,
		stats.ConnectionsTotal,
		stats.UsersOnline,
		stats.RoomsActive,
		stats.EventsPublished,
		stats.FramesDropped,
	} {
		su.RegisterMetric(name)
	}

	return &ChatServer{
		log:            logger.With().Str("component", "chat_server").Logger(),
		store:          store,
		broker:         broker,
		stats:          su,
		clients:        make(map[*Client]struct{}),
		userMap:        make(map[string]map[*Client]struct{}),
		rooms:          make(map[string]*Room),
		registerChan:   make(chan *registration),
		deRegisterChan: make(chan *Client),
		roomChan:       make(chan *roomRequest, 256),
		presenceChan:   make(chan presenceUpdate, 1024),
		presenceDone:   make(chan struct{}),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

func (cs *ChatServer) Run() {
	go cs.updatePresence()

	envelopes := cs.broker.Envelopes()
	for {
		select {
		case reg := <-cs.registerChan:
			cs.addClient(reg)
		case c := <-cs.deRegisterChan:
			cs.removeClient(c)
		case req := <-cs.roomChan:
			cs.handleRoomRequest(req)
		case env, ok := <-envelopes:
			if !ok {
				cs.log.Warn().Msg("broker stream closed")
				envelopes = nil
				continue
			}
			cs.handleEnvelope(env)
		case <-cs.stop:
			cs.log.Info().Int("connections", len(cs.clients)).Msg("shutting down connections")
			for c := range cs.clients {
				cs.removeClient(c)
			}

			close(cs.presenceChan)
			<-cs.presenceDone
			close(cs.done)
			return
		}
	}
}

// Shutdown stops the hub, closes every connection and marks their users
// away. It returns early if ctx is done first.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Info().Msg("received shutdown signal")
	cs.stopOnce.Do(func() { close(cs.stop) })

	select {
	case <-cs.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return cs.broker.Close()
}

// Connect subscribes the client to its personal room and to the room of
// every chat the user is a member of.
func (cs *ChatServer) Connect(ctx context.Context, c *Client) error {
	chatIds, err := cs.store.ListChatIdsForUser(ctx, c.userId)
	if err != nil {
		return err
	}

	reg := &registration{
		client: c,
		rooms:  append([]string{c.userId}, chatIds...),
	}

	select {
	case cs.registerChan <- reg:
		return nil
	case <-cs.stop:
		return ErrServerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (cs *ChatServer) unregister(c *Client) {
	select {
	case cs.deRegisterChan <- c:
	case <-cs.done:
	}
}

func (cs *ChatServer) requestRoom(req *roomRequest) {
	select {
	case cs.roomChan <- req:
	default:
		req.client.log.Warn().Msg("room channel full")
		req.client.queueMessage(ErrServiceUnavailable(req.id))
	}
}

func (cs *ChatServer) addClient(reg *registration) {
	c := reg.client
	cs.clients[c] = struct{}{}
	cs.stats.Incr(stats.ConnectionsActive)
	cs.stats.Incr(stats.ConnectionsTotal)

	conns, ok := cs.userMap[c.userId]
	if !ok {
		conns = make(map[*Client]struct{})
		cs.userMap[c.userId] = conns
		cs.stats.Incr(stats.UsersOnline)
	}
	conns[c] = struct{}{}

	for _, id := range reg.rooms {
		cs.subscribe(c, id)
	}

	cs.log.Debug().
		Str("conn_id", c.id).
		Str("user_id", c.userId).
		Int("rooms", len(c.rooms)).
		Msg("connection registered")
	cs.queuePresence(c.userId, types.StatusOnline)
}

func (cs *ChatServer) removeClient(c *Client) {
	if _, ok := cs.clients[c]; !ok {
		return
	}

	for id := range c.rooms {
		cs.unsubscribe(c, id)
	}

	delete(cs.clients, c)
	cs.stats.Decr(stats.ConnectionsActive)
	c.stopClient()

	conns := cs.userMap[c.userId]
	delete(conns, c)
	if len(conns) == 0 {
		delete(cs.userMap, c.userId)
		cs.stats.Decr(stats.UsersOnline)
		cs.queuePresence(c.userId, types.StatusAway)
	}

	cs.log.Debug().Str("conn_id", c.id).Str("user_id", c.userId).Msg("connection removed")
}

func (cs *ChatServer) subscribe(c *Client, roomId string) {
	r, ok := cs.rooms[roomId]
	if !ok {
		r = newRoom(roomId)
		cs.rooms[roomId] = r
		cs.stats.Incr(stats.RoomsActive)
	}

	r.add(c)
	c.rooms[roomId] = struct{}{}
}

func (cs *ChatServer) unsubscribe(c *Client, roomId string) {
	delete(c.rooms, roomId)

	r, ok := cs.rooms[roomId]
	if !ok {
		return
	}

	r.remove(c)
	if r.empty() {
		delete(cs.rooms, roomId)
		cs.stats.Decr(stats.RoomsActive)
	}
}

func (cs *ChatServer) dropRoom(roomId string) {
	r, ok := cs.rooms[roomId]
	if !ok {
		return
	}

	for c := range r.clients {
		delete(c.rooms, roomId)
	}
	delete(cs.rooms, roomId)
	cs.stats.Decr(stats.RoomsActive)
}

func (cs *ChatServer) handleRoomRequest(req *roomRequest) {
	// The connection may have gone away while the request was queued.
	if _, ok := cs.clients[req.client]; !ok {
		return
	}

	if req.join {
		cs.subscribe(req.client, req.chatId)
	} else {
		cs.unsubscribe(req.client, req.chatId)
	}

	req.client.queueMessage(NoErrOK(req.id, map[string]any{"chat_id": req.chatId}))
}

func (cs *ChatServer) handleEnvelope(env Envelope) {
	switch env.Kind {
	case KindDeliver:
		r, ok := cs.rooms[env.RoomId]
		if !ok || env.Message == nil {
			return
		}
		for i := r.broadcast(env.Message); i > 0; i-- {
			cs.stats.Incr(stats.FramesDropped)
		}
	case KindAddMembers:
		for _, userId := range env.UserIds {
			for c := range cs.userMap[userId] {
				cs.subscribe(c, env.RoomId)
			}
		}
	case KindRemoveMembers:
		for _, userId := range env.UserIds {
			for c := range cs.userMap[userId] {
				cs.unsubscribe(c, env.RoomId)
			}
		}
	case KindDropRoom:
		cs.dropRoom(env.RoomId)
	default:
		cs.log.Warn().Str("kind", env.Kind).Msg("unknown envelope kind")
	}
}

func (cs *ChatServer) queuePresence(userId string, status types.Status) {
	cs.presenceChan <- presenceUpdate{userId: userId, status: status, at: time.Now().UTC()}
}

// updatePresence writes presence changes in the order the loop decided them.
func (cs *ChatServer) updatePresence() {
	defer close(cs.presenceDone)

	for p := range cs.presenceChan {
		ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
		if err := cs.store.UpdatePresence(ctx, p.userId, p.status, p.at); err != nil {
			cs.log.Error().Err(err).Str("user_id", p.userId).Str("status", string(p.status)).Msg("failed to update presence")
		}
		cancel()
	}
}
