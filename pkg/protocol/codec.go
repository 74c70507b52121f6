package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// ViolationError marks a frame the hub will drop without closing the
// connection (unknown type or malformed payload).
type ViolationError struct {
	FrameType string
	Err       error
}

func (e *ViolationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol violation in %q frame: %v", e.FrameType, e.Err)
	}
	return fmt.Sprintf("unknown frame type %q", e.FrameType)
}

func (e *ViolationError) Unwrap() error { return e.Err }

// DecodeInbound parses a raw client frame into its typed form. The returned
// value is a pointer to one of the *Frame structs in this package.
func DecodeInbound(raw []byte) (any, error) {
	t := gjson.GetBytes(raw, "type")
	if !t.Exists() {
		return nil, &ViolationError{FrameType: ""}
	}

	unmarshal := func(v any) (any, error) {
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, &ViolationError{FrameType: t.String(), Err: err}
		}
		return v, nil
	}

	switch t.String() {
	case TypeJoin:
		return unmarshal(&JoinFrame{})
	case TypeJoinRoom:
		return unmarshal(&JoinRoomFrame{})
	case TypeSetChatPreference:
		return unmarshal(&SetChatPreferenceFrame{})
	case TypeFindPartner:
		return unmarshal(&FindPartnerFrame{})
	case TypeHeartbeat:
		return unmarshal(&HeartbeatFrame{})
	case TypeSkip:
		return unmarshal(&SkipFrame{})
	case TypeLogout:
		return unmarshal(&LogoutFrame{})
	case TypeSendMessage:
		return unmarshal(&SendMessageFrame{})
	case TypeTyping:
		return unmarshal(&TypingFrame{})
	case TypeToggleVideo, TypeToggleAudio:
		return unmarshal(&ToggleFrame{})
	case TypeRelaySDP:
		return unmarshal(&RelaySDPFrame{})
	case TypeRelayICECandidate:
		return unmarshal(&RelayICECandidateFrame{})
	case TypeWebRTCReady:
		return unmarshal(&WebRTCReadyFrame{})
	case TypeWebRTCFailed:
		return unmarshal(&WebRTCFailedFrame{})
	case TypeCheckConnection:
		return unmarshal(&CheckConnectionFrame{})
	case TypeClientReady:
		return unmarshal(&ClientReadyFrame{})
	default:
		return nil, &ViolationError{FrameType: t.String()}
	}
}

// SDPType extracts the "type" field (offer/answer) from an opaque SDP blob.
func SDPType(sdp json.RawMessage) string {
	return gjson.GetBytes(sdp, "type").String()
}

// Encode marshals an outbound frame. Outbound structs contain only
// marshalable fields, so failure indicates a programming error.
func Encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("protocol: unencodable outbound frame: %v", err))
	}
	return b
}
