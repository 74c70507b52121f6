package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/jumpman786/omcgill/internal/sink"
	"github.com/jumpman786/omcgill/pkg/protocol"
)

type sinkRecord struct {
	From, To, Body, Status string
	At                     time.Time
}

// recordingSink captures stored messages and signals each store on a channel
// so tests can wait for the fire-and-forget goroutine.
type recordingSink struct {
	mu      sync.Mutex
	records []sinkRecord
	stored  chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{stored: make(chan struct{}, 16)}
}

func (s *recordingSink) Store(_ context.Context, from, to, body, status string, ts time.Time) error {
	s.mu.Lock()
	s.records = append(s.records, sinkRecord{From: from, To: to, Body: body, Status: status, At: ts})
	s.mu.Unlock()
	s.stored <- struct{}{}
	return nil
}

func (s *recordingSink) waitForStore(t *testing.T) sinkRecord {
	t.Helper()
	select {
	case <-s.stored:
	case <-time.After(2 * time.Second):
		t.Fatal("sink never received the message")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[len(s.records)-1]
}

type failingSink struct{}

func (failingSink) Store(context.Context, string, string, string, string, time.Time) error {
	return errors.New("disk full")
}

func sendMessage(h *Hub, conn *fakeSender, senderID, roomID, body string) {
	dispatch(h, conn, fmt.Sprintf(`{"type":"sendMessage","senderId":%q,"roomId":%q,"message":%q}`, senderID, roomID, body))
}

func TestMessageEchoedToBothParticipants(t *testing.T) {
	recSink := newRecordingSink()
	h, _, clock := newTestHub(nil, recSink)
	alice := attach(h, "alice")
	bob := attach(h, "bob")
	roomID := pair(t, h, alice, bob, "alice", "bob", "text")

	sendMessage(h, alice, "alice", roomID, "hey there")

	for _, conn := range []*fakeSender{alice, bob} {
		msg := conn.lastOfType(protocol.TypeReceiveMessage)
		require.NotNil(t, msg)
		require.Equal(t, "alice", gjson.GetBytes(msg, "senderId").String())
		require.Equal(t, "hey there", gjson.GetBytes(msg, "message").String())
		require.Equal(t, roomID, gjson.GetBytes(msg, "roomId").String())
		require.Equal(t, clock.now().UTC().Format(time.RFC3339Nano),
			gjson.GetBytes(msg, "createdAt").String())
	}

	rec := recSink.waitForStore(t)
	require.Equal(t, "alice", rec.From)
	require.Equal(t, "bob", rec.To)
	require.Equal(t, "hey there", rec.Body)
	require.Equal(t, sink.StatusDelivered, rec.Status)
}

func TestSinkFailureDoesNotBlockDelivery(t *testing.T) {
	h, _, _ := newTestHub(nil, failingSink{})
	alice := attach(h, "alice")
	bob := attach(h, "bob")
	roomID := pair(t, h, alice, bob, "alice", "bob", "text")

	sendMessage(h, alice, "alice", roomID, "still delivered")

	require.NotNil(t, bob.lastOfType(protocol.TypeReceiveMessage))
	require.Eventually(t, func() bool {
		return h.DroppedPersists() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMessageFromNonParticipantDropped(t *testing.T) {
	h, _, _ := newTestHub(nil, nil)
	alice := attach(h, "alice")
	bob := attach(h, "bob")
	eve := attach(h, "eve")
	roomID := pair(t, h, alice, bob, "alice", "bob", "text")

	sendMessage(h, eve, "eve", roomID, "let me in")

	require.Nil(t, alice.lastOfType(protocol.TypeReceiveMessage))
	require.Nil(t, bob.lastOfType(protocol.TypeReceiveMessage))
}

func TestMessageForUnknownRoomDropped(t *testing.T) {
	h, _, _ := newTestHub(nil, nil)
	alice := attach(h, "alice")

	sendMessage(h, alice, "alice", "text_room_missing", "hello?")

	require.Nil(t, alice.lastOfType(protocol.TypeReceiveMessage))
}

func TestTypingGoesToPeerOnly(t *testing.T) {
	h, _, _ := newTestHub(nil, nil)
	alice := attach(h, "alice")
	bob := attach(h, "bob")
	roomID := pair(t, h, alice, bob, "alice", "bob", "text")

	dispatch(h, alice, fmt.Sprintf(`{"type":"typing","senderId":"alice","roomId":%q}`, roomID))

	typing := bob.lastOfType(protocol.TypeTyping)
	require.NotNil(t, typing)
	require.Equal(t, "alice", gjson.GetBytes(typing, "senderId").String())
	require.Nil(t, alice.lastOfType(protocol.TypeTyping))
}

func TestTogglesForwardToPeerWithKind(t *testing.T) {
	h, _, _ := newTestHub(nil, nil)
	alice := attach(h, "alice")
	bob := attach(h, "bob")
	roomID := pair(t, h, alice, bob, "alice", "bob", "video")

	dispatch(h, alice, fmt.Sprintf(`{"type":"toggleVideo","senderId":"alice","roomId":%q,"enabled":false}`, roomID))
	dispatch(h, alice, fmt.Sprintf(`{"type":"toggleAudio","senderId":"alice","roomId":%q,"enabled":true}`, roomID))

	video := bob.lastOfType(protocol.TypePartnerToggleVideo)
	require.NotNil(t, video)
	require.False(t, gjson.GetBytes(video, "enabled").Bool())

	audio := bob.lastOfType(protocol.TypePartnerToggleAudio)
	require.NotNil(t, audio)
	require.True(t, gjson.GetBytes(audio, "enabled").Bool())

	require.Nil(t, alice.lastOfType(protocol.TypePartnerToggleVideo))
	require.Nil(t, alice.lastOfType(protocol.TypePartnerToggleAudio))
}
