// Package hub is the pairing and signaling core: it owns all connection,
// queue and room state, and serializes every mutation behind one exclusive
// section. Connections feed it decoded frames; it fans typed frames back out
// through bounded per-connection send queues that never block the section.
package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jumpman786/omcgill/internal/profile"
	"github.com/jumpman786/omcgill/internal/sink"
	"github.com/jumpman786/omcgill/pkg/protocol"
)

// Sender is the hub's view of a client connection. Send must not block;
// *transport.Connection satisfies this.
type Sender interface {
	ID() uuid.UUID
	Send(message []byte)
	Close(err error)
}

type Config struct {
	PresenceBroadcastMinInterval time.Duration
	DuplicateOfferWindow         time.Duration
	PairConfirmationDelay        time.Duration
	HeartbeatInterval            time.Duration
}

func (c *Config) applyDefaults() {
	if c.PresenceBroadcastMinInterval <= 0 {
		c.PresenceBroadcastMinInterval = 500 * time.Millisecond
	}
	if c.DuplicateOfferWindow <= 0 {
		c.DuplicateOfferWindow = 2 * time.Second
	}
	if c.PairConfirmationDelay <= 0 {
		c.PairConfirmationDelay = 500 * time.Millisecond
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 10 * time.Second
	}
}

type Hub struct {
	logger   *slog.Logger
	cfg      Config
	profiles profile.Store
	sink     sink.MessageSink

	mu       sync.Mutex
	registry *userRegistry
	queues   *waitingQueues
	rooms    *roomRegistry
	// conns tracks every attached connection together with the identity it
	// authenticated as; heartbeats use it to re-register after a logout.
	conns map[uuid.UUID]boundConn

	// Messages the sink failed to persist. Delivery still happened.
	droppedPersists atomic.Uint64

	now       func() time.Time
	afterFunc func(time.Duration, func()) *time.Timer
}

func New(logger *slog.Logger, cfg Config, profiles profile.Store, messageSink sink.MessageSink) *Hub {
	cfg.applyDefaults()
	if profiles == nil {
		profiles = unavailableProfiles{}
	}
	if messageSink == nil {
		messageSink = sink.Discard{}
	}
	return &Hub{
		logger:    logger.With(slog.String("component", "hub")),
		cfg:       cfg,
		profiles:  profiles,
		sink:      messageSink,
		registry:  newUserRegistry(),
		queues:    newWaitingQueues(),
		rooms:     newRoomRegistry(),
		conns:     make(map[uuid.UUID]boundConn),
		now:       time.Now,
		afterFunc: time.AfterFunc,
	}
}

// unavailableProfiles stands in when no profile store is configured; every
// lookup reports a transient failure so matching fails open.
type unavailableProfiles struct{}

func (unavailableProfiles) Attributes(context.Context, string) (profile.Attributes, error) {
	return profile.Attributes{}, profile.ErrTransient
}

// errConnReplaced is the close reason handed to a connection superseded by a
// newer handshake for the same user.
var errConnReplaced = errors.New("replaced by newer handshake")

// boundConn pairs an attached connection with the identity it authenticated
// as on the handshake. Frames may never act for a different identity.
type boundConn struct {
	sender Sender
	userID string
}

// Attach binds an authenticated connection to its user. The newest handshake
// wins: an older connection under the same UserID is closed and replaced.
func (h *Hub) Attach(conn Sender, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[conn.ID()] = boundConn{sender: conn, userID: userID}
	old := h.registry.register(userID, conn)
	if old != nil && old.ID() != conn.ID() {
		h.logger.Info("Replacing stale connection for user",
			slog.String("userID", userID),
			slog.String("oldConnID", old.ID().String()))
		delete(h.conns, old.ID())
		// Close outside the section: the transport runs the close handler
		// synchronously and Detach takes the hub lock.
		go old.Close(errConnReplaced)
	}
}

// Detach runs the disconnect path for a closed connection. A connection that
// has already been superseded by a newer handshake is ignored.
func (h *Hub) Detach(connID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns, connID)
	user := h.registry.byConnID(connID)
	if user == nil {
		h.logger.Debug("Ignoring disconnect from stale epoch", slog.String("connID", connID.String()))
		return
	}
	h.logger.Info("User disconnected", slog.String("userID", user.ID))
	h.registry.deregister(user.ID, connID)
	h.leaveRoomLocked(user)
	h.queues.remove(user.ID)
	// deregister kept the state while the user still held a room; the room
	// is gone now, so whatever is left expires.
	h.registry.remove(user.ID)
	h.broadcastPresence()
}

// HandleFrame is the single entry point for inbound frames.
func (h *Hub) HandleFrame(ctx context.Context, connID uuid.UUID, raw []byte) {
	frame, err := protocol.DecodeInbound(raw)
	if err != nil {
		h.logger.Debug("Dropping invalid frame", slog.String("connID", connID.String()), slog.Any("error", err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	switch f := frame.(type) {
	case *protocol.JoinFrame:
		h.handleJoin(connID, f)
	case *protocol.JoinRoomFrame:
		h.handleJoinRoom(connID, f)
	case *protocol.SetChatPreferenceFrame:
		h.handleSetChatPreference(connID, f)
	case *protocol.FindPartnerFrame:
		h.handleFindPartner(ctx, connID, f)
	case *protocol.HeartbeatFrame:
		h.handleHeartbeat(ctx, connID, f)
	case *protocol.SkipFrame:
		h.handleSkip(connID, f)
	case *protocol.LogoutFrame:
		h.handleLogout(connID, f)
	case *protocol.SendMessageFrame:
		h.handleSendMessage(ctx, connID, f)
	case *protocol.TypingFrame:
		h.handleTyping(connID, f)
	case *protocol.ToggleFrame:
		h.handleToggle(connID, f)
	case *protocol.RelaySDPFrame:
		h.handleRelaySDP(connID, f)
	case *protocol.RelayICECandidateFrame:
		h.handleRelayICECandidate(connID, f)
	case *protocol.WebRTCReadyFrame:
		h.handleWebRTCReady(connID, f)
	case *protocol.WebRTCFailedFrame:
		h.handleWebRTCFailed(connID, f)
	case *protocol.CheckConnectionFrame:
		h.handleCheckConnection(connID, f)
	case *protocol.ClientReadyFrame:
		h.handleClientReady(connID, f)
	}
}

// DroppedPersists reports how many relayed messages the sink failed to store.
func (h *Hub) DroppedPersists() uint64 {
	return h.droppedPersists.Load()
}

// userFor resolves a frame's claimed user against the connection's bound
// identity. Frames claiming someone else's UserID are dropped.
func (h *Hub) userFor(connID uuid.UUID, claimedUserID string) *UserState {
	user := h.registry.byConnID(connID)
	if user == nil {
		h.logger.Debug("Frame from unbound connection", slog.String("connID", connID.String()))
		return nil
	}
	if claimedUserID != "" && claimedUserID != user.ID {
		h.logger.Debug("Frame userId does not match connection identity",
			slog.String("connID", connID.String()),
			slog.String("claimed", claimedUserID),
			slog.String("bound", user.ID))
		return nil
	}
	return user
}

// --- Outbound fan-out ---

func (h *Hub) sendToUser(userID string, frame any) {
	user, ok := h.registry.get(userID)
	if !ok || user.Conn == nil {
		h.logger.Debug("No live connection for outbound frame", slog.String("userID", userID))
		return
	}
	user.Conn.Send(protocol.Encode(frame))
}

func (h *Hub) sendToRoom(room *Room, frame any) {
	for _, id := range room.Participants {
		h.sendToUser(id, frame)
	}
}

// broadcastPresence emits the active-user snapshot to every live connection,
// honoring the per-connection throttle.
func (h *Hub) broadcastPresence() {
	now := h.now()
	users := h.registry.snapshotActive()
	frame := protocol.Encode(&protocol.ActiveUsersFrame{Type: protocol.TypeActiveUsers, Users: users})

	for _, user := range h.registry.all() {
		if user.Conn == nil {
			continue
		}
		if now.Sub(user.lastPresenceAt) < h.cfg.PresenceBroadcastMinInterval {
			continue
		}
		user.lastPresenceAt = now
		user.Conn.Send(frame)
	}
}

// sendPresenceTo emits the snapshot to a single user, still throttled.
func (h *Hub) sendPresenceTo(user *UserState) {
	if user.Conn == nil {
		return
	}
	now := h.now()
	if now.Sub(user.lastPresenceAt) < h.cfg.PresenceBroadcastMinInterval {
		return
	}
	user.lastPresenceAt = now
	user.Conn.Send(protocol.Encode(&protocol.ActiveUsersFrame{
		Type:  protocol.TypeActiveUsers,
		Users: h.registry.snapshotActive(),
	}))
}
