package transport

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/okian/vigil/pkg/logger"
	"github.com/okian/vigil/pkg/metrics"
)

// DefaultBuffer is the outbound frame buffer of each member.
const DefaultBuffer = 256

// Member is one connected client. Frames published to its rooms arrive on
// Outbound in publish order.
type Member struct {
	id    string
	out   chan []byte
	done  chan struct{}
	rooms map[RoomKind]Room
	gone  bool
}

// ID returns the member id.
func (m *Member) ID() string { return m.id }

// Outbound delivers frames for the member's rooms.
func (m *Member) Outbound() <-chan []byte { return m.out }

// Done is closed when the member is disconnected or evicted. Frames
// already buffered on Outbound may still be drained.
func (m *Member) Done() <-chan struct{} { return m.done }

// Subscription is a room membership.
type Subscription struct {
	once  sync.Once
	leave func()
}

// Close leaves the room. Extra calls do nothing.
func (s *Subscription) Close() {
	s.once.Do(s.leave)
}

// Hub routes frames to rooms. Publish fans out under the hub lock, so
// every member of a room sees frames in the same order they were
// published. Late joiners get no backlog.
type Hub struct {
	mu      sync.Mutex
	rooms   map[Room]map[*Member]struct{}
	members map[*Member]struct{}
	buffer  int
	logger  logger.Logger
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		rooms:   make(map[Room]map[*Member]struct{}),
		members: make(map[*Member]struct{}),
		buffer:  DefaultBuffer,
		logger:  logger.Get(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.Named("hub")
	return h
}

// Connect registers a new member.
func (h *Hub) Connect() *Member {
	m := &Member{
		id:    uuid.NewString(),
		out:   make(chan []byte, h.buffer),
		done:  make(chan struct{}),
		rooms: make(map[RoomKind]Room),
	}
	h.mu.Lock()
	h.members[m] = struct{}{}
	h.mu.Unlock()
	return m
}

// Join puts m in room, moving it out of any other room of the same kind.
// Joining a room m is already in keeps the membership.
func (h *Hub) Join(m *Member, room Room) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !m.gone {
		kind := room.Kind()
		if prev, ok := m.rooms[kind]; ok && prev != room {
			h.removeLocked(m, prev)
		}
		set, ok := h.rooms[room]
		if !ok {
			set = make(map[*Member]struct{})
			h.rooms[room] = set
		}
		set[m] = struct{}{}
		m.rooms[kind] = room
		metrics.UpdateRoomMembers(string(kind), h.countLocked(kind))
	}
	return &Subscription{leave: func() { h.Leave(m, room) }}
}

// Leave removes m from room.
func (h *Hub) Leave(m *Member, room Room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(m, room)
}

// Rooms returns the rooms m is in.
func (h *Hub) Rooms(m *Member) []Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	return out
}

// Publish sends frame to every member of room and returns how many got
// it. A member whose buffer is full is evicted and must reconnect.
func (h *Hub) Publish(ctx context.Context, room Room, frame []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for m := range h.rooms[room] {
		select {
		case m.out <- frame:
			delivered++
		default:
			h.logger.Warn(ctx, "evicting slow member",
				logger.String("member", m.id),
				logger.String("room", string(room)),
			)
			metrics.RecordWebsocketEviction()
			h.disconnectLocked(m)
		}
	}
	return delivered
}

// Members returns the number of members in room.
func (h *Hub) Members(room Room) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

// Disconnect removes m from every room and closes Done. Extra calls do
// nothing.
func (h *Hub) Disconnect(m *Member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnectLocked(m)
}

func (h *Hub) disconnectLocked(m *Member) {
	if m.gone {
		return
	}
	for _, r := range m.rooms {
		h.removeLocked(m, r)
	}
	m.gone = true
	close(m.done)
	delete(h.members, m)
}

func (h *Hub) removeLocked(m *Member, room Room) {
	set, ok := h.rooms[room]
	if !ok {
		return
	}
	if _, in := set[m]; !in {
		return
	}
	delete(set, m)
	if len(set) == 0 {
		delete(h.rooms, room)
	}
	kind := room.Kind()
	if m.rooms[kind] == room {
		delete(m.rooms, kind)
	}
	metrics.UpdateRoomMembers(string(kind), h.countLocked(kind))
}

func (h *Hub) countLocked(kind RoomKind) int {
	n := 0
	for r, set := range h.rooms {
		if r.Kind() == kind {
			n += len(set)
		}
	}
	return n
}
