package hub

import (
	"strings"
	"testing"
	"time"

	"github.com/jumpman786/omcgill/pkg/protocol"
)

func TestRoomParticipantsSortedRegardlessOfOrder(t *testing.T) {
	rr := newRoomRegistry()
	now := time.Now()

	room := rr.create("zed", "amy", protocol.ModalityText, now)
	if room.Participants != [2]string{"amy", "zed"} {
		t.Errorf("participants not sorted: %v", room.Participants)
	}
	if room.Initiator() != "amy" {
		t.Errorf("expected amy as initiator, got %s", room.Initiator())
	}
}

func TestRoomPeerResolution(t *testing.T) {
	rr := newRoomRegistry()
	room := rr.create("a", "b", protocol.ModalityText, time.Now())

	if peer := room.Peer("a"); peer != "b" {
		t.Errorf("Peer(a) = %q, want b", peer)
	}
	if peer := room.Peer("b"); peer != "a" {
		t.Errorf("Peer(b) = %q, want a", peer)
	}
	if peer := room.Peer("stranger"); peer != "" {
		t.Errorf("Peer(stranger) = %q, want empty", peer)
	}
}

func TestRoomRegistryReverseIndex(t *testing.T) {
	rr := newRoomRegistry()
	room := rr.create("a", "b", protocol.ModalityVideo, time.Now())

	for _, id := range []string{"a", "b"} {
		found, ok := rr.lookup(id)
		if !ok || found.ID != room.ID {
			t.Errorf("lookup(%s) did not resolve to the room", id)
		}
	}

	rr.destroy(room.ID)
	if _, ok := rr.lookup("a"); ok {
		t.Error("reverse index survived destroy")
	}
	if _, ok := rr.get(room.ID); ok {
		t.Error("room survived destroy")
	}
}

func TestRoomDestroyUnknownIsNil(t *testing.T) {
	rr := newRoomRegistry()
	if room := rr.destroy("missing"); room != nil {
		t.Error("destroying an unknown room returned a room")
	}
}

func TestVideoRoomsCarrySignalingState(t *testing.T) {
	rr := newRoomRegistry()
	video := rr.create("a", "b", protocol.ModalityVideo, time.Now())
	text := rr.create("c", "d", protocol.ModalityText, time.Now())

	if video.signaling == nil {
		t.Error("video room has no signaling state")
	}
	if text.signaling != nil {
		t.Error("text room has signaling state")
	}
}

func TestRoomIDFormatAndUniqueness(t *testing.T) {
	id1 := newRoomID(protocol.ModalityVideo)
	id2 := newRoomID(protocol.ModalityVideo)

	if !strings.HasPrefix(id1, "video_room_") {
		t.Errorf("unexpected room id format: %s", id1)
	}
	if id1 == id2 {
		t.Error("two room ids collided")
	}
	if len(id1) != len("video_room_")+32 {
		t.Errorf("unexpected entropy length in %s", id1)
	}
}
