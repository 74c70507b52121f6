package hub

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/jumpman786/omcgill/pkg/protocol"
)

// Room is a two-participant session. Participants are stored sorted so the
// initiator (the lexicographically smaller UserID, invariant I7 of the
// signaling choreography) is always Participants[0].
type Room struct {
	ID           string
	Participants [2]string
	Modality     protocol.Modality
	CreatedAt    time.Time

	// signaling is non-nil for video rooms only.
	signaling *signalingState
}

// Peer returns the other participant, or "" when userID is not a member.
func (r *Room) Peer(userID string) string {
	switch userID {
	case r.Participants[0]:
		return r.Participants[1]
	case r.Participants[1]:
		return r.Participants[0]
	default:
		return ""
	}
}

func (r *Room) isParticipant(userID string) bool {
	return r.Peer(userID) != ""
}

// Initiator is the participant responsible for the first WebRTC offer.
func (r *Room) Initiator() string {
	return r.Participants[0]
}

// roomRegistry owns all active rooms and the UserID→RoomID reverse index.
// Access runs under the hub's exclusive section.
type roomRegistry struct {
	rooms  map[string]*Room
	byUser map[string]string
}

func newRoomRegistry() *roomRegistry {
	return &roomRegistry{
		rooms:  make(map[string]*Room),
		byUser: make(map[string]string),
	}
}

// create pairs u and v in a fresh room and updates the reverse index.
func (rr *roomRegistry) create(u, v string, modality protocol.Modality, now time.Time) *Room {
	a, b := u, v
	if b < a {
		a, b = b, a
	}
	room := &Room{
		ID:           newRoomID(modality),
		Participants: [2]string{a, b},
		Modality:     modality,
		CreatedAt:    now,
	}
	if modality == protocol.ModalityVideo {
		room.signaling = newSignalingState()
	}
	rr.rooms[room.ID] = room
	rr.byUser[a] = room.ID
	rr.byUser[b] = room.ID
	return room
}

// destroy removes the room and clears both reverse-index entries.
func (rr *roomRegistry) destroy(roomID string) *Room {
	room, ok := rr.rooms[roomID]
	if !ok {
		return nil
	}
	delete(rr.rooms, roomID)
	for _, id := range room.Participants {
		if rr.byUser[id] == roomID {
			delete(rr.byUser, id)
		}
	}
	if room.signaling != nil {
		room.signaling.stopTimers()
	}
	return room
}

func (rr *roomRegistry) get(roomID string) (*Room, bool) {
	room, ok := rr.rooms[roomID]
	return room, ok
}

// lookup resolves a user to their room in O(1).
func (rr *roomRegistry) lookup(userID string) (*Room, bool) {
	roomID, ok := rr.byUser[userID]
	if !ok {
		return nil, false
	}
	room, ok := rr.rooms[roomID]
	return room, ok
}

// newRoomID builds an unguessable room id: a modality prefix plus 128 bits
// of entropy.
func newRoomID(modality protocol.Modality) string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms.
		panic("room id entropy unavailable: " + err.Error())
	}
	return string(modality) + "_room_" + hex.EncodeToString(buf[:])
}
