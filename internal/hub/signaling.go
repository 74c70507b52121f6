package hub

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jumpman786/omcgill/pkg/protocol"
)

// pendingICEFlushDelay is how long after relaying an answer the buffered
// candidates are released as a batch.
const pendingICEFlushDelay = 500 * time.Millisecond

type pendingCandidate struct {
	from  string
	frame *protocol.RelayICECandidateFrame
}

// signalingState orchestrates the WebRTC choreography of one video room:
// Fresh → OfferRelayed → AnswerRelayed, with a full reset on restart. An
// answer is only relayed after an offer (I4); candidates are buffered until
// the answer exists and then flushed as a batch (I5).
type signalingState struct {
	offerRelayed  bool
	answerRelayed bool
	lastSDPType   string
	lastSDPAt     time.Time
	lastOfferFrom string
	pendingICE    []pendingCandidate
	flushTimer    *time.Timer
}

func newSignalingState() *signalingState {
	return &signalingState{}
}

// reset returns the room to Fresh. Buffered candidates reference a peer
// connection that no longer exists, so they are discarded with the state.
func (s *signalingState) reset() {
	s.stopTimers()
	*s = signalingState{}
}

func (s *signalingState) stopTimers() {
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
}

// signalingRoom resolves a signaling frame to its video room, dropping
// frames for unknown rooms, non-participants, and text rooms.
func (h *Hub) signalingRoom(connID uuid.UUID, claimedUserID, roomID string) (*UserState, *Room) {
	user := h.userFor(connID, claimedUserID)
	if user == nil {
		return nil, nil
	}
	room, ok := h.rooms.get(roomID)
	if !ok || !room.isParticipant(user.ID) {
		h.logger.Debug("Signaling frame for unknown room dropped",
			slog.String("userID", user.ID), slog.String("roomID", roomID))
		return nil, nil
	}
	if room.signaling == nil {
		h.logger.Debug("Signaling frame for non-video room dropped",
			slog.String("roomID", roomID))
		return nil, nil
	}
	return user, room
}

func (h *Hub) handleRelaySDP(connID uuid.UUID, f *protocol.RelaySDPFrame) {
	user, room := h.signalingRoom(connID, f.UserID, f.RoomID)
	if room == nil {
		return
	}
	st := room.signaling
	now := h.now()

	switch protocol.SDPType(f.SDP) {
	case "offer":
		if st.offerRelayed {
			// A repeat offer is only honored when it comes from the
			// other side and the duplicate window has passed.
			sameOrigin := user.ID == st.lastOfferFrom
			tooSoon := now.Sub(st.lastSDPAt) < h.cfg.DuplicateOfferWindow
			if sameOrigin || tooSoon {
				h.logger.Debug("Discarding duplicate offer",
					slog.String("roomID", room.ID), slog.String("from", user.ID))
				return
			}
		}
		st.offerRelayed = true
		st.lastSDPType = "offer"
		st.lastSDPAt = now
		st.lastOfferFrom = user.ID

	case "answer":
		if !st.offerRelayed {
			h.logger.Debug("Dropping answer before any offer",
				slog.String("roomID", room.ID), slog.String("from", user.ID))
			return
		}
		st.answerRelayed = true
		st.lastSDPType = "answer"
		st.lastSDPAt = now
		h.scheduleICEFlush(room.ID, user.ID)

	default:
		h.logger.Debug("Dropping SDP with unknown type", slog.String("roomID", room.ID))
		return
	}

	h.sendToUser(room.Peer(user.ID), &protocol.SDPFrame{
		Type:   protocol.TypeSDP,
		RoomID: room.ID,
		SDP:    f.SDP,
		UserID: user.ID,
	})
}

func (h *Hub) handleRelayICECandidate(connID uuid.UUID, f *protocol.RelayICECandidateFrame) {
	user, room := h.signalingRoom(connID, f.UserID, f.RoomID)
	if room == nil {
		return
	}
	st := room.signaling

	if st.answerRelayed {
		h.forwardCandidate(room, user.ID, f)
		return
	}

	st.pendingICE = append(st.pendingICE, pendingCandidate{from: user.ID, frame: f})
	h.logger.Debug("Buffered ICE candidate until answer",
		slog.String("roomID", room.ID), slog.Int("pending", len(st.pendingICE)))
}

// scheduleICEFlush releases buffered candidates shortly after the answer is
// relayed. Candidates originating from the answerer are excluded: each
// remaining candidate goes to the participant opposite its origin.
func (h *Hub) scheduleICEFlush(roomID, answererID string) {
	room, ok := h.rooms.get(roomID)
	if !ok || room.signaling == nil {
		return
	}
	room.signaling.stopTimers()
	room.signaling.flushTimer = h.afterFunc(pendingICEFlushDelay, func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		room, ok := h.rooms.get(roomID)
		if !ok || room.signaling == nil || !room.signaling.answerRelayed {
			return
		}
		st := room.signaling
		pending := st.pendingICE
		st.pendingICE = nil
		st.flushTimer = nil

		for _, cand := range pending {
			if cand.from == answererID {
				continue
			}
			h.forwardCandidate(room, cand.from, cand.frame)
		}
		if len(pending) > 0 {
			h.logger.Debug("Flushed pending ICE candidates",
				slog.String("roomID", roomID), slog.Int("count", len(pending)))
		}
	})
}

func (h *Hub) forwardCandidate(room *Room, fromID string, f *protocol.RelayICECandidateFrame) {
	h.sendToUser(room.Peer(fromID), &protocol.ICECandidateFrame{
		Type:      protocol.TypeICECandidate,
		RoomID:    room.ID,
		Candidate: f.Candidate,
		UserID:    fromID,
	})
}

// handleWebRTCReady resets the room's choreography to Fresh and tells the
// peer, inverting the initiator flag so exactly one side offers.
func (h *Hub) handleWebRTCReady(connID uuid.UUID, f *protocol.WebRTCReadyFrame) {
	user, room := h.signalingRoom(connID, f.UserID, f.RoomID)
	if room == nil {
		return
	}
	room.signaling.reset()

	h.sendToUser(room.Peer(user.ID), &protocol.PeerWebRTCReadyFrame{
		Type:        protocol.TypePeerWebRTCReady,
		RoomID:      room.ID,
		UserID:      user.ID,
		IsInitiator: !f.IsInitiator,
	})
}

// handleWebRTCFailed discards the choreography, notifies the peer, and
// instructs both sides to restart with the reporter as the new initiator.
func (h *Hub) handleWebRTCFailed(connID uuid.UUID, f *protocol.WebRTCFailedFrame) {
	user, room := h.signalingRoom(connID, f.UserID, f.RoomID)
	if room == nil {
		return
	}
	h.logger.Info("WebRTC failure reported",
		slog.String("roomID", room.ID), slog.String("userID", user.ID))
	room.signaling.reset()

	h.sendToUser(room.Peer(user.ID), &protocol.PeerWebRTCFailedFrame{
		Type:   protocol.TypePeerWebRTCFailed,
		RoomID: room.ID,
		UserID: user.ID,
	})
	h.sendToRoom(room, &protocol.WebRTCRestartFrame{
		Type:      protocol.TypeWebRTCRestart,
		RoomID:    room.ID,
		Initiator: user.ID,
	})
}
