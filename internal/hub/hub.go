// Package hub runs the server side of the draft synchronization protocol:
// one room per open draft, fanning presence, cursor, and content events out
// to every connected participant.
package hub

import (
	"context"
	"hash/fnv"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"draftroom/internal/presence"
	"draftroom/internal/protocol"
	"draftroom/internal/store"
)

// cursorColors is the palette assigned to participants. Stable per user:
// the same account gets the same color across sessions.
var cursorColors = []string{
	"#ef4444", "#f59e0b", "#10b981", "#3b82f6",
	"#8b5cf6", "#ec4899", "#14b8a6", "#f97316",
}

// DraftStore is the slice of persistence the hub needs: seed content when
// a room opens, flush it back when the room empties.
type DraftStore interface {
	GetDraft(ctx context.Context, id int64) (store.Draft, error)
	SaveDraftContent(ctx context.Context, id int64, content string) error
}

// Hub owns every open room.
type Hub struct {
	mu       sync.Mutex
	rooms    map[int64]*Room
	registry *presence.Registry
	drafts   DraftStore
	bridge   *Bridge
}

// New creates a hub. bridge may be nil when running a single instance.
func New(drafts DraftStore, bridge *Bridge) *Hub {
	return &Hub{
		rooms:    make(map[int64]*Room),
		registry: presence.NewRegistry(),
		drafts:   drafts,
		bridge:   bridge,
	}
}

// Room is the shared state for one open draft.
type Room struct {
	hub     *Hub
	draftID int64
	key     string

	mu      sync.Mutex
	content string
	clients map[*client]struct{}
	closed  bool

	unsubscribe func()
}

type client struct {
	user presence.Participant
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// Serve attaches an upgraded connection to the draft's room and blocks
// until the participant disconnects.
func (h *Hub) Serve(ctx context.Context, draftID int64, userID, username string, conn *websocket.Conn) {
	c := &client{
		user: presence.Participant{
			UserID:   userID,
			Username: username,
			Color:    colorFor(userID),
		},
		conn: conn,
		send: make(chan []byte, 64),
		done: make(chan struct{}),
	}

	// A room can close between lookup and join if its last participant
	// leaves in that window; retry against a fresh room.
	var room *Room
	for {
		var err error
		room, err = h.room(ctx, draftID)
		if err != nil {
			log.Printf("hub: open room %d: %v", draftID, err)
			conn.Close()
			return
		}
		if room.join(c) {
			break
		}
	}

	go c.writePump()
	room.readPump(ctx, c)
	room.leave(ctx, c)
}

// room returns the open room for a draft, creating it (and seeding its
// content from the store) on first join.
func (h *Hub) room(ctx context.Context, draftID int64) (*Room, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.rooms[draftID]; ok {
		return room, nil
	}

	draft, err := h.drafts.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}

	room := &Room{
		hub:     h,
		draftID: draftID,
		key:     roomKey(draftID),
		content: draft.Content,
		clients: make(map[*client]struct{}),
	}
	if h.bridge != nil {
		room.unsubscribe = h.bridge.Subscribe(room.key, room.applyRemote)
	}
	h.rooms[draftID] = room
	return room, nil
}

// join adds the client and sends the room snapshot. Returns false if the
// room already closed.
func (r *Room) join(c *client) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.clients[c] = struct{}{}
	content := r.content
	r.mu.Unlock()

	users := toUsers(r.hub.registry.Join(r.key, c.user))

	c.enqueue(protocol.Message{
		Type:    protocol.TypeRoomState,
		Users:   users,
		Content: content,
	})
	r.broadcast(protocol.Message{Type: protocol.TypeUserJoined, Users: users}, c)
	return true
}

func (r *Room) leave(ctx context.Context, c *client) {
	c.close()

	r.mu.Lock()
	delete(r.clients, c)
	empty := len(r.clients) == 0
	r.mu.Unlock()

	users := toUsers(r.hub.registry.Leave(r.key, c.user.UserID))
	if !empty {
		r.broadcast(protocol.Message{Type: protocol.TypeUserLeft, Users: users}, nil)
		return
	}

	r.hub.closeRoom(ctx, r)
}

// closeRoom flushes the room content back to the store, unless a new
// participant slipped in since the emptiness check.
func (h *Hub) closeRoom(ctx context.Context, r *Room) {
	h.mu.Lock()
	r.mu.Lock()
	if len(r.clients) > 0 || r.closed {
		r.mu.Unlock()
		h.mu.Unlock()
		return
	}
	r.closed = true
	content := r.content
	delete(h.rooms, r.draftID)
	r.mu.Unlock()
	h.mu.Unlock()

	if r.unsubscribe != nil {
		r.unsubscribe()
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := h.drafts.SaveDraftContent(flushCtx, r.draftID, content); err != nil {
		log.Printf("hub: flush draft %d: %v", r.draftID, err)
	}
}

func (r *Room) readPump(ctx context.Context, c *client) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			// One garbled frame never drops the participant.
			continue
		}
		r.handle(ctx, c, msg)
	}
}

func (r *Room) handle(ctx context.Context, c *client, msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeCursor:
		r.hub.registry.UpdateCursor(r.key, c.user.UserID, msg.Position)
		out := protocol.Message{
			Type:     protocol.TypeCursorUpdate,
			UserID:   c.user.UserID,
			Position: msg.Position,
		}
		r.broadcast(out, c)
		r.publish(ctx, out)
	case protocol.TypeContent:
		r.mu.Lock()
		r.content = msg.Content
		r.mu.Unlock()
		r.hub.registry.UpdateCursor(r.key, c.user.UserID, msg.CursorPosition)
		out := protocol.Message{
			Type:    protocol.TypeContentUpdate,
			UserID:  c.user.UserID,
			Content: msg.Content,
		}
		r.broadcast(out, c)
		r.publish(ctx, out)
	case protocol.TypePing:
		c.enqueue(protocol.Message{Type: protocol.TypePong})
	default:
		// Unknown types are ignored, not errors.
	}
}

// applyRemote handles an event relayed from another server instance.
func (r *Room) applyRemote(msg protocol.Message) {
	if msg.Type == protocol.TypeContentUpdate {
		r.mu.Lock()
		r.content = msg.Content
		r.mu.Unlock()
	}
	r.broadcast(msg, nil)
}

// broadcast queues msg for every client except skip. A client whose send
// queue is full is dropped rather than allowed to stall the room.
func (r *Room) broadcast(msg protocol.Message, skip *client) {
	data, err := protocol.Encode(msg)
	if err != nil {
		return
	}

	r.mu.Lock()
	var stalled []*client
	for c := range r.clients {
		if c == skip {
			continue
		}
		select {
		case c.send <- data:
		case <-c.done:
		default:
			stalled = append(stalled, c)
		}
	}
	r.mu.Unlock()

	for _, c := range stalled {
		log.Printf("hub: dropping slow client %s in room %s", c.user.UserID, r.key)
		c.close()
	}
}

func (r *Room) publish(ctx context.Context, msg protocol.Message) {
	if r.hub.bridge == nil {
		return
	}
	if err := r.hub.bridge.Publish(ctx, r.key, msg); err != nil {
		log.Printf("hub: publish to %s: %v", r.key, err)
	}
}

func (c *client) enqueue(msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	default:
		c.close()
	}
}

func (c *client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		}
	}
}

// close unblocks both pumps; closing the connection makes the read loop
// return, which drives the leave path.
func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func roomKey(draftID int64) string {
	return "draft:" + strconv.FormatInt(draftID, 10)
}

func colorFor(userID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return cursorColors[int(h.Sum32())%len(cursorColors)]
}

func toUsers(participants []presence.Participant) []protocol.User {
	users := make([]protocol.User, 0, len(participants))
	for _, p := range participants {
		users = append(users, protocol.User{
			UserID:         p.UserID,
			Username:       p.Username,
			Color:          p.Color,
			CursorPosition: p.Cursor,
		})
	}
	return users
}
