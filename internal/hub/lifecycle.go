package hub

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jumpman786/omcgill/pkg/protocol"
)

func (h *Hub) handleJoin(connID uuid.UUID, f *protocol.JoinFrame) {
	user := h.userFor(connID, f.UserID)
	if user == nil {
		return
	}
	h.logger.Info("User joined", slog.String("userID", user.ID))
	user.LastSeen = h.now()

	// A fresh join never carries over old queue membership.
	h.queues.remove(user.ID)
	user.QueuedModality = ""

	h.sendPresenceTo(user)
}

func (h *Hub) handleJoinRoom(connID uuid.UUID, f *protocol.JoinRoomFrame) {
	user := h.userFor(connID, f.UserID)
	if user == nil {
		return
	}
	room, ok := h.rooms.get(f.RoomID)
	if !ok || !room.isParticipant(user.ID) {
		h.logger.Debug("joinRoom for unknown room or non-participant",
			slog.String("userID", user.ID), slog.String("roomID", f.RoomID))
		return
	}
	h.sendToRoom(room, &protocol.ConnectionConfirmedFrame{
		Type:   protocol.TypeConnectionConfirmed,
		RoomID: room.ID,
	})
}

func (h *Hub) handleSetChatPreference(connID uuid.UUID, f *protocol.SetChatPreferenceFrame) {
	user := h.userFor(connID, f.UserID)
	if user == nil {
		return
	}
	if !f.Preference.Valid() {
		h.logger.Debug("Ignoring invalid chat preference",
			slog.String("userID", user.ID), slog.String("preference", string(f.Preference)))
		return
	}
	user.Preference = f.Preference
}

func (h *Hub) handleFindPartner(ctx context.Context, connID uuid.UUID, f *protocol.FindPartnerFrame) {
	user := h.userFor(connID, f.UserID)
	if user == nil {
		return
	}
	user.LastSeen = h.now()

	if f.Nickname != "" {
		user.Nickname = f.Nickname
	}
	if f.ChatType.Valid() {
		user.Preference = f.ChatType
	}
	user.Filter = f.Filters

	modality := user.Preference
	if !modality.Valid() {
		modality = protocol.ModalityText
	}

	// Searching again while paired abandons the current room, exactly as
	// a skip would; a user belongs to at most one room.
	if user.RoomID != "" {
		h.leaveRoomLocked(user)
	}

	if h.attemptPairing(ctx, user, modality) {
		return
	}

	h.enqueueWaiting(user, modality)
}

func (h *Hub) handleHeartbeat(ctx context.Context, connID uuid.UUID, f *protocol.HeartbeatFrame) {
	bound, ok := h.conns[connID]
	if !ok || f.UserID == "" {
		return
	}
	// The rebind below may run while the registry has no record of this
	// connection, so the identity check cannot rely on userFor: the claim
	// is checked against the identity the handshake authenticated.
	if f.UserID != bound.userID {
		h.logger.Debug("Heartbeat claiming foreign identity dropped",
			slog.String("connID", connID.String()),
			slog.String("claimed", f.UserID),
			slog.String("bound", bound.userID))
		return
	}

	user, registered := h.registry.get(f.UserID)
	if !registered || user.Conn == nil || user.Conn.ID() != connID {
		// Post-logout heartbeat: the connection becomes authoritative
		// for its own user again.
		h.logger.Debug("Heartbeat rebinding connection", slog.String("userID", f.UserID))
		if old := h.registry.register(f.UserID, bound.sender); old != nil && old.ID() != connID {
			delete(h.conns, old.ID())
			go old.Close(errConnReplaced)
		}
		user, _ = h.registry.get(f.UserID)
		h.broadcastPresence()
	}
	user.LastSeen = h.now()

	if !f.Waiting || !f.ChatType.Valid() {
		return
	}
	if user.RoomID != "" || h.queues.contains(user.ID, f.ChatType) {
		return
	}

	// Re-enqueue and immediately retry the match.
	h.sendWaiting(user, f.ChatType)
	if !h.attemptPairing(ctx, user, f.ChatType) {
		h.queues.enqueue(user.ID, f.ChatType)
		user.QueuedModality = f.ChatType
	}
}

func (h *Hub) handleSkip(connID uuid.UUID, f *protocol.SkipFrame) {
	user := h.userFor(connID, f.UserID)
	if user == nil {
		return
	}
	h.logger.Info("User skipped", slog.String("userID", user.ID))
	h.leaveRoomLocked(user)
	h.queues.remove(user.ID)
	user.QueuedModality = ""
}

func (h *Hub) handleLogout(connID uuid.UUID, f *protocol.LogoutFrame) {
	user := h.userFor(connID, f.UserID)
	if user == nil {
		return
	}
	h.logger.Info("User logged out", slog.String("userID", user.ID))
	h.logoutLocked(user.ID)
}

func (h *Hub) handleCheckConnection(connID uuid.UUID, f *protocol.CheckConnectionFrame) {
	user := h.userFor(connID, f.UserID)
	if user == nil {
		return
	}
	room, ok := h.rooms.get(f.RoomID)
	if !ok || !room.isParticipant(user.ID) {
		return
	}
	h.sendToRoom(room, &protocol.ConnectionConfirmedFrame{
		Type:   protocol.TypeConnectionConfirmed,
		RoomID: room.ID,
	})
}

func (h *Hub) handleClientReady(connID uuid.UUID, f *protocol.ClientReadyFrame) {
	user := h.userFor(connID, f.UserID)
	if user == nil {
		return
	}
	room, ok := h.rooms.get(f.RoomID)
	if !ok || !room.isParticipant(user.ID) {
		h.logger.Debug("clientReady for unknown room", slog.String("roomID", f.RoomID))
		return
	}
	h.sendToUser(room.Peer(user.ID), &protocol.PeerReadyFrame{
		Type:   protocol.TypePeerReady,
		UserID: user.ID,
		RoomID: room.ID,
	})
	h.sendToUser(user.ID, &protocol.ConnectionConfirmedFrame{
		Type:   protocol.TypeConnectionConfirmed,
		RoomID: room.ID,
	})
}

// --- Pairing ---

// attemptPairing runs the matcher for the user and, on success, creates the
// room and notifies both sides: the previously waiting peer strictly first,
// then the requester, then (after the configured delay) a connection
// confirmation to the whole room.
func (h *Hub) attemptPairing(ctx context.Context, user *UserState, modality protocol.Modality) bool {
	partnerID := h.findCompatiblePartner(ctx, user, modality)
	if partnerID == "" {
		return false
	}
	partner, ok := h.registry.get(partnerID)
	if !ok {
		return false
	}

	room := h.rooms.create(user.ID, partnerID, modality, h.now())
	user.RoomID = room.ID
	user.QueuedModality = ""
	partner.RoomID = room.ID
	partner.QueuedModality = ""

	h.logger.Info("Paired users",
		slog.String("roomID", room.ID),
		slog.String("requester", user.ID),
		slog.String("partner", partnerID),
		slog.String("modality", string(modality)))

	h.sendToUser(partnerID, &protocol.PartnerFoundFrame{
		Type:            protocol.TypePartnerFound,
		PartnerID:       user.ID,
		PartnerNickname: user.DisplayName(),
		RoomID:          room.ID,
		ChatType:        modality,
	})
	h.sendToUser(user.ID, &protocol.PartnerFoundFrame{
		Type:            protocol.TypePartnerFound,
		PartnerID:       partnerID,
		PartnerNickname: partner.DisplayName(),
		RoomID:          room.ID,
		ChatType:        modality,
	})

	roomID := room.ID
	h.afterFunc(h.cfg.PairConfirmationDelay, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		confirmed, stillThere := h.rooms.get(roomID)
		if !stillThere {
			return
		}
		h.sendToRoom(confirmed, &protocol.ConnectionConfirmedFrame{
			Type:   protocol.TypeConnectionConfirmed,
			RoomID: roomID,
		})
	})
	return true
}

func (h *Hub) enqueueWaiting(user *UserState, modality protocol.Modality) {
	h.queues.enqueue(user.ID, modality)
	user.QueuedModality = modality
	h.sendWaiting(user, modality)
}

func (h *Hub) sendWaiting(user *UserState, modality protocol.Modality) {
	h.sendToUser(user.ID, &protocol.WaitingFrame{
		Type:    protocol.TypeWaiting,
		Message: fmt.Sprintf("Waiting for a %s chat partner...", modality),
	})
}

// --- Teardown ---

// leaveRoomLocked unwinds the user's room, if any: the peer gets a single
// best-effort partnerDisconnected, the room and its signaling state are
// destroyed, and both reverse-index entries are cleared.
func (h *Hub) leaveRoomLocked(user *UserState) {
	room, ok := h.rooms.lookup(user.ID)
	if !ok {
		user.RoomID = ""
		return
	}
	h.rooms.destroy(room.ID)
	user.RoomID = ""

	peerID := room.Peer(user.ID)
	if peer, peerKnown := h.registry.get(peerID); peerKnown {
		peer.RoomID = ""
		h.sendToUser(peerID, &protocol.PartnerDisconnectedFrame{Type: protocol.TypePartnerDisconnected})
		if !h.registry.hasLiveConn(peerID) {
			// No connection and no room left: the state expires.
			h.registry.remove(peerID)
		}
	}
	h.logger.Debug("Room destroyed", slog.String("roomID", room.ID))
}

// logoutLocked is the shared teardown for logout and disconnect: leave the
// room, leave the queues, drop the registration (which also clears nickname,
// preference and filter) and re-broadcast presence.
func (h *Hub) logoutLocked(userID string) {
	user, ok := h.registry.get(userID)
	if !ok {
		return
	}
	h.leaveRoomLocked(user)
	h.queues.remove(userID)
	h.registry.remove(userID)
	h.broadcastPresence()
}
