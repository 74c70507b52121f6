package hub

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jumpman786/omcgill/internal/sink"
	"github.com/jumpman786/omcgill/pkg/protocol"
)

// handleSendMessage validates room membership, hands the message to the sink
// fire-and-forget, and echoes it to both participants. The sender's echo is
// its delivery acknowledgement.
func (h *Hub) handleSendMessage(ctx context.Context, connID uuid.UUID, f *protocol.SendMessageFrame) {
	user := h.userFor(connID, f.SenderID)
	if user == nil {
		return
	}
	room, ok := h.rooms.get(f.RoomID)
	if !ok {
		h.logger.Debug("Message for unknown room dropped", slog.String("roomID", f.RoomID))
		return
	}
	if !room.isParticipant(user.ID) {
		h.logger.Debug("Message from non-participant dropped",
			slog.String("userID", user.ID), slog.String("roomID", f.RoomID))
		return
	}

	now := h.now()
	receiverID := room.Peer(user.ID)
	go h.persistMessage(user.ID, receiverID, f.Message, now)

	h.sendToRoom(room, &protocol.ReceiveMessageFrame{
		Type:      protocol.TypeReceiveMessage,
		SenderID:  user.ID,
		Message:   f.Message,
		RoomID:    room.ID,
		CreatedAt: now.UTC().Format(time.RFC3339Nano),
	})
}

// persistMessage runs outside the hub's exclusive section. A sink failure
// only bumps the dropped-persist counter; delivery already happened.
func (h *Hub) persistMessage(from, to, body string, ts time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.sink.Store(ctx, from, to, body, sink.StatusDelivered, ts); err != nil {
		h.droppedPersists.Add(1)
		h.logger.Warn("Message sink store failed", slog.Any("error", err))
	}
}

// handleTyping forwards a typing indicator to the non-sender participant.
func (h *Hub) handleTyping(connID uuid.UUID, f *protocol.TypingFrame) {
	user := h.userFor(connID, f.SenderID)
	if user == nil {
		return
	}
	room, ok := h.rooms.get(f.RoomID)
	if !ok || !room.isParticipant(user.ID) {
		h.logger.Debug("Typing for unknown room dropped", slog.String("roomID", f.RoomID))
		return
	}
	h.sendToUser(room.Peer(user.ID), &protocol.PeerTypingFrame{
		Type:     protocol.TypeTyping,
		SenderID: user.ID,
	})
}

// handleToggle forwards a media-control toggle to the non-sender participant.
func (h *Hub) handleToggle(connID uuid.UUID, f *protocol.ToggleFrame) {
	user := h.userFor(connID, f.SenderID)
	if user == nil {
		return
	}
	room, ok := h.rooms.get(f.RoomID)
	if !ok || !room.isParticipant(user.ID) {
		h.logger.Debug("Toggle for unknown room dropped", slog.String("roomID", f.RoomID))
		return
	}

	outType := protocol.TypePartnerToggleVideo
	if f.Type == protocol.TypeToggleAudio {
		outType = protocol.TypePartnerToggleAudio
	}
	h.sendToUser(room.Peer(user.ID), &protocol.PartnerToggleFrame{
		Type:     outType,
		Enabled:  f.Enabled,
		SenderID: user.ID,
	})
}
