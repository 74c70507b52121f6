// Package protocol defines the JSON frames exchanged with clients. Every
// frame is an object with a "type" discriminator; SDP and ICE payloads are
// carried as opaque blobs and never inspected beyond the sdp "type" field.
package protocol

import "encoding/json"

// Inbound frame types.
const (
	TypeJoin              = "join"
	TypeJoinRoom          = "joinRoom"
	TypeSetChatPreference = "setChatPreference"
	TypeFindPartner       = "findPartner"
	TypeHeartbeat         = "heartbeat"
	TypeSkip              = "skip"
	TypeLogout            = "logout"
	TypeSendMessage       = "sendMessage"
	TypeTyping            = "typing"
	TypeToggleVideo       = "toggleVideo"
	TypeToggleAudio       = "toggleAudio"
	TypeRelaySDP          = "relay_sdp"
	TypeRelayICECandidate = "relay_ice_candidate"
	TypeWebRTCReady       = "webrtc_ready"
	TypeWebRTCFailed      = "webrtc_failed"
	TypeCheckConnection   = "checkConnection"
	TypeClientReady       = "clientReady"
)

// Outbound frame types.
const (
	TypeActiveUsers         = "activeUsers"
	TypeWaiting             = "waiting"
	TypePartnerFound        = "partnerFound"
	TypePartnerDisconnected = "partnerDisconnected"
	TypeConnectionConfirmed = "connectionConfirmed"
	TypeReceiveMessage      = "receiveMessage"
	TypePartnerToggleVideo  = "partnerToggleVideo"
	TypePartnerToggleAudio  = "partnerToggleAudio"
	TypeSDP                 = "sdp"
	TypeICECandidate        = "ice_candidate"
	TypePeerWebRTCReady     = "peer_webrtc_ready"
	TypePeerWebRTCFailed    = "peer_webrtc_failed"
	TypeWebRTCRestart       = "webrtc_restart"
	TypePeerReady           = "peer_ready"
)

// Modality is the kind of chat a user can request.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityVideo Modality = "video"
)

func (m Modality) Valid() bool {
	return m == ModalityText || m == ModalityVideo
}

// FilterAny matches every profile value.
const FilterAny = "Any"

// Filter restricts partner matching. Empty fields are treated as Any.
type Filter struct {
	Faculty     string `json:"faculty"`
	YearOfStudy string `json:"yearOfStudy"`
}

func (f Filter) IsAny() bool {
	return (f.Faculty == "" || f.Faculty == FilterAny) &&
		(f.YearOfStudy == "" || f.YearOfStudy == FilterAny)
}

// --- Frames consumed from clients ---

type JoinFrame struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type JoinRoomFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type SetChatPreferenceFrame struct {
	Type       string   `json:"type"`
	UserID     string   `json:"userId"`
	Preference Modality `json:"preference"`
}

type FindPartnerFrame struct {
	Type     string   `json:"type"`
	UserID   string   `json:"userId"`
	ChatType Modality `json:"chatType"`
	Nickname string   `json:"nickname"`
	Filters  Filter   `json:"filters"`
}

type HeartbeatFrame struct {
	Type     string   `json:"type"`
	UserID   string   `json:"userId"`
	Waiting  bool     `json:"waiting"`
	ChatType Modality `json:"chatType"`
}

type SkipFrame struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type LogoutFrame struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type SendMessageFrame struct {
	Type       string `json:"type"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Message    string `json:"message"`
	RoomID     string `json:"roomId"`
}

type TypingFrame struct {
	Type     string `json:"type"`
	SenderID string `json:"senderId"`
	RoomID   string `json:"roomId"`
}

type ToggleFrame struct {
	Type     string `json:"type"`
	Enabled  bool   `json:"enabled"`
	RoomID   string `json:"roomId"`
	SenderID string `json:"senderId"`
}

type RelaySDPFrame struct {
	Type   string          `json:"type"`
	RoomID string          `json:"roomId"`
	SDP    json.RawMessage `json:"sdp"`
	UserID string          `json:"userId,omitempty"`
}

type RelayICECandidateFrame struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"roomId"`
	Candidate json.RawMessage `json:"candidate"`
	UserID    string          `json:"userId,omitempty"`
}

type WebRTCReadyFrame struct {
	Type        string `json:"type"`
	RoomID      string `json:"roomId"`
	UserID      string `json:"userId"`
	IsInitiator bool   `json:"isInitiator"`
}

type WebRTCFailedFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type CheckConnectionFrame struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
	RoomID string `json:"roomId"`
}

type ClientReadyFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// --- Frames emitted to clients ---

type ActiveUsersFrame struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

type WaitingFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type PartnerFoundFrame struct {
	Type            string   `json:"type"`
	PartnerID       string   `json:"partnerId"`
	PartnerNickname string   `json:"partnerNickname"`
	RoomID          string   `json:"roomId"`
	ChatType        Modality `json:"chatType"`
}

type PartnerDisconnectedFrame struct {
	Type string `json:"type"`
}

type ConnectionConfirmedFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

type ReceiveMessageFrame struct {
	Type      string `json:"type"`
	SenderID  string `json:"senderId"`
	Message   string `json:"message"`
	RoomID    string `json:"roomId"`
	CreatedAt string `json:"createdAt"`
}

type PeerTypingFrame struct {
	Type     string `json:"type"`
	SenderID string `json:"senderId"`
}

type PartnerToggleFrame struct {
	Type     string `json:"type"`
	Enabled  bool   `json:"enabled"`
	SenderID string `json:"senderId"`
}

type SDPFrame struct {
	Type   string          `json:"type"`
	RoomID string          `json:"roomId"`
	SDP    json.RawMessage `json:"sdp"`
	UserID string          `json:"userId,omitempty"`
}

type ICECandidateFrame struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"roomId"`
	Candidate json.RawMessage `json:"candidate"`
	UserID    string          `json:"userId,omitempty"`
}

type PeerWebRTCReadyFrame struct {
	Type        string `json:"type"`
	RoomID      string `json:"roomId"`
	UserID      string `json:"userId"`
	IsInitiator bool   `json:"isInitiator"`
}

type PeerWebRTCFailedFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type WebRTCRestartFrame struct {
	Type      string `json:"type"`
	RoomID    string `json:"roomId"`
	Initiator string `json:"initiator"`
}

type PeerReadyFrame struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
	RoomID string `json:"roomId"`
}
