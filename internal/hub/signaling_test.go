package hub

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/jumpman786/omcgill/pkg/protocol"
)

func relayOffer(h *Hub, conn *fakeSender, userID, roomID string) {
	dispatch(h, conn, fmt.Sprintf(
		`{"type":"relay_sdp","userId":%q,"roomId":%q,"sdp":{"type":"offer","sdp":"v=0 offer"}}`, userID, roomID))
}

func relayAnswer(h *Hub, conn *fakeSender, userID, roomID string) {
	dispatch(h, conn, fmt.Sprintf(
		`{"type":"relay_sdp","userId":%q,"roomId":%q,"sdp":{"type":"answer","sdp":"v=0 answer"}}`, userID, roomID))
}

func relayCandidate(h *Hub, conn *fakeSender, userID, roomID, candidate string) {
	dispatch(h, conn, fmt.Sprintf(
		`{"type":"relay_ice_candidate","userId":%q,"roomId":%q,"candidate":{"candidate":%q}}`, userID, roomID, candidate))
}

// videoPair builds a video room between alice and bob and clears their frame
// logs so assertions only see signaling traffic.
func videoPair(t *testing.T, h *Hub) (alice, bob *fakeSender, roomID string) {
	t.Helper()
	alice = attach(h, "alice")
	bob = attach(h, "bob")
	roomID = pair(t, h, alice, bob, "alice", "bob", "video")
	alice.clear()
	bob.clear()
	return alice, bob, roomID
}

func TestInitiatorIsSmallerUserID(t *testing.T) {
	h, _, _ := newTestHub(nil, nil)
	zed := attach(h, "zed")
	amy := attach(h, "amy")
	roomID := pair(t, h, zed, amy, "zed", "amy", "video")

	room, ok := h.rooms.get(roomID)
	require.True(t, ok)
	require.Equal(t, "amy", room.Initiator())
	require.Equal(t, [2]string{"amy", "zed"}, room.Participants)
}

func TestOfferRelayedToPeer(t *testing.T) {
	h, _, _ := newTestHub(nil, nil)
	alice, bob, roomID := videoPair(t, h)

	relayOffer(h, alice, "alice", roomID)

	sdp := bob.lastOfType(protocol.TypeSDP)
	require.NotNil(t, sdp)
	require.Equal(t, "offer", gjson.GetBytes(sdp, "sdp.type").String())
	require.Equal(t, "alice", gjson.GetBytes(sdp, "userId").String())
	require.Nil(t, alice.lastOfType(protocol.TypeSDP))
}

func TestAnswerBeforeOfferDropped(t *testing.T) {
	h, _, _ := newTestHub(nil, nil)
	alice, bob, roomID := videoPair(t, h)

	relayAnswer(h, bob, "bob", roomID)

	require.Nil(t, alice.lastOfType(protocol.TypeSDP))
}

func TestDuplicateOfferSuppression(t *testing.T) {
	h, _, clock := newTestHub(nil, nil)
	alice, bob, roomID := videoPair(t, h)

	relayOffer(h, alice, "alice", roomID)
	require.Equal(t, 1, bob.countOfType(protocol.TypeSDP))

	// Other side inside the window (glare): discarded.
	relayOffer(h, bob, "bob", roomID)
	require.Equal(t, 0, alice.countOfType(protocol.TypeSDP))

	// Same origin: always discarded, no matter how much time passed.
	relayOffer(h, alice, "alice", roomID)
	clock.advance(time.Minute)
	relayOffer(h, alice, "alice", roomID)
	require.Equal(t, 1, bob.countOfType(protocol.TypeSDP))

	// Other side after the window: honored (restart recovery).
	relayOffer(h, bob, "bob", roomID)
	require.Equal(t, 1, alice.countOfType(protocol.TypeSDP))
}

func TestICEBufferedUntilAnswerThenFlushed(t *testing.T) {
	h, timers, _ := newTestHub(nil, nil)
	alice, bob, roomID := videoPair(t, h)

	relayOffer(h, alice, "alice", roomID)

	// Candidates gathered before the answer exists are held back.
	relayCandidate(h, alice, "alice", roomID, "cand-a1")
	relayCandidate(h, alice, "alice", roomID, "cand-a2")
	relayCandidate(h, bob, "bob", roomID, "cand-b1")
	require.Equal(t, 0, alice.countOfType(protocol.TypeICECandidate))
	require.Equal(t, 0, bob.countOfType(protocol.TypeICECandidate))

	relayAnswer(h, bob, "bob", roomID)
	require.NotNil(t, alice.lastOfType(protocol.TypeSDP))

	// The flush runs on a timer; the answerer's own stale candidates are
	// dropped, everyone else's go to the opposite side.
	timers.fire()
	require.Equal(t, 2, bob.countOfType(protocol.TypeICECandidate))
	require.Equal(t, 0, alice.countOfType(protocol.TypeICECandidate))
}

func TestICEForwardedImmediatelyAfterAnswer(t *testing.T) {
	h, timers, _ := newTestHub(nil, nil)
	alice, bob, roomID := videoPair(t, h)

	relayOffer(h, alice, "alice", roomID)
	relayAnswer(h, bob, "bob", roomID)
	timers.fire()
	alice.clear()
	bob.clear()

	relayCandidate(h, alice, "alice", roomID, "cand-late")

	cand := bob.lastOfType(protocol.TypeICECandidate)
	require.NotNil(t, cand)
	require.Equal(t, "cand-late", gjson.GetBytes(cand, "candidate.candidate").String())
	require.Equal(t, "alice", gjson.GetBytes(cand, "userId").String())
}

func TestSignalingIgnoredForTextRooms(t *testing.T) {
	h, _, _ := newTestHub(nil, nil)
	alice := attach(h, "alice")
	bob := attach(h, "bob")
	roomID := pair(t, h, alice, bob, "alice", "bob", "text")
	alice.clear()
	bob.clear()

	relayOffer(h, alice, "alice", roomID)
	relayCandidate(h, alice, "alice", roomID, "cand")

	require.Nil(t, bob.lastOfType(protocol.TypeSDP))
	require.Nil(t, bob.lastOfType(protocol.TypeICECandidate))
}

func TestSignalingFromNonParticipantDropped(t *testing.T) {
	h, _, _ := newTestHub(nil, nil)
	alice, bob, roomID := videoPair(t, h)
	eve := attach(h, "eve")

	relayOffer(h, eve, "eve", roomID)

	require.Nil(t, alice.lastOfType(protocol.TypeSDP))
	require.Nil(t, bob.lastOfType(protocol.TypeSDP))
}

func TestWebRTCReadyResetsAndInvertsInitiator(t *testing.T) {
	h, _, _ := newTestHub(nil, nil)
	alice, bob, roomID := videoPair(t, h)

	relayOffer(h, alice, "alice", roomID)
	relayCandidate(h, alice, "alice", roomID, "stale")

	dispatch(h, alice, fmt.Sprintf(
		`{"type":"webrtc_ready","userId":"alice","roomId":%q,"isInitiator":true}`, roomID))

	ready := bob.lastOfType(protocol.TypePeerWebRTCReady)
	require.NotNil(t, ready)
	require.False(t, gjson.GetBytes(ready, "isInitiator").Bool())
	require.Equal(t, "alice", gjson.GetBytes(ready, "userId").String())

	// The choreography is Fresh again: an answer is premature, and the
	// stale buffered candidate must never surface.
	relayAnswer(h, bob, "bob", roomID)
	require.Nil(t, alice.lastOfType(protocol.TypeSDP))

	relayOffer(h, bob, "bob", roomID)
	relayAnswer(h, alice, "alice", roomID)
	require.Equal(t, 0, alice.countOfType(protocol.TypeICECandidate))
	require.Equal(t, 0, bob.countOfType(protocol.TypeICECandidate))
}

func TestWebRTCFailedTriggersRestartWithReporterAsInitiator(t *testing.T) {
	h, _, _ := newTestHub(nil, nil)
	alice, bob, roomID := videoPair(t, h)

	relayOffer(h, alice, "alice", roomID)
	relayAnswer(h, bob, "bob", roomID)

	dispatch(h, bob, fmt.Sprintf(`{"type":"webrtc_failed","userId":"bob","roomId":%q}`, roomID))

	failed := alice.lastOfType(protocol.TypePeerWebRTCFailed)
	require.NotNil(t, failed)
	require.Equal(t, "bob", gjson.GetBytes(failed, "userId").String())

	for _, conn := range []*fakeSender{alice, bob} {
		restart := conn.lastOfType(protocol.TypeWebRTCRestart)
		require.NotNil(t, restart)
		require.Equal(t, "bob", gjson.GetBytes(restart, "initiator").String())
	}

	// Reset took effect: a fresh offer round is accepted.
	alice.clear()
	bob.clear()
	relayOffer(h, bob, "bob", roomID)
	require.NotNil(t, alice.lastOfType(protocol.TypeSDP))
}
