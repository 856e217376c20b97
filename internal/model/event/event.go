package event

import (
	"encoding/json"
	"time"

	"github.com/zhouzirui/clipdesk/backend/internal/model/channel"
	"github.com/zhouzirui/clipdesk/backend/internal/model/synthesis"
)

// Outer frame kinds accepted from a connected client.
const (
	FrameJoin    = "join-channel"
	FrameLeave   = "leave-channel"
	FrameMessage = "message"
)

// Frame is the envelope of every inbound websocket message.
type Frame struct {
	Kind        string          `json:"kind"`
	Timestamp   int64           `json:"timestamp"`
	UserUUID    string          `json:"userUuid,omitempty"`
	DisplayName string          `json:"displayName,omitempty"`
	ChannelName string          `json:"channelName,omitempty"`
	Message     json.RawMessage `json:"message,omitempty"`
}

// Type enumerates the routed message kinds carried inside a "message" frame.
type Type string

const (
	TypeHeartbeat           Type = "heartbeat"
	TypeAddDocument         Type = "add-document"
	TypeRemoveDocument      Type = "remove-document"
	TypeAddClip             Type = "add-clip"
	TypeRemoveClip          Type = "remove-clip"
	TypeVoteClip            Type = "vote-clip"
	TypeTranscriptionUpdate Type = "transcription-update"
	TypeFlagSentence        Type = "flag-sentence"
	TypeAddSynthesis        Type = "add-synthesis"
	TypeRemoveSynthesis     Type = "remove-synthesis"
	TypeChatDraft           Type = "chat-draft"
	TypeChatMessage         Type = "chat-message"
	TypeAgentMessage        Type = "agent-message"
)

// Message is the routed envelope. The router validates these fields and
// re-broadcasts the original wire bytes untouched, so kind-specific payload
// fields are left to the clients.
type Message struct {
	UserUUID    string `json:"userUuid"`
	ChannelName string `json:"channelName"`
	Type        Type   `json:"type"`
	Timestamp   int64  `json:"timestamp"`
}

// HeartbeatPayload carries the ping marker of a heartbeat message.
type HeartbeatPayload struct {
	Ping bool `json:"ping"`
}

// SynthesisPayload carries the synthesis descriptor of an add-synthesis message.
type SynthesisPayload struct {
	Synthesis *synthesis.Descriptor `json:"synthesis"`
}

// Error codes reported back to the originating endpoint. None of them are
// fatal and none are ever broadcast.
const (
	CodeInvalidJoinRequest          = "InvalidJoinRequest"
	CodeInvalidMessageFormat        = "InvalidMessageFormat"
	CodeUnknownChannelOrParticipant = "UnknownChannelOrParticipant"
	CodeUnknownMessageKind          = "UnknownMessageKind"
	CodeSynthesisFailure            = "SynthesisFailure"
)

// UserListEvent announces the full membership of a channel after a change.
type UserListEvent struct {
	Kind        string                    `json:"kind"`
	Timestamp   int64                     `json:"timestamp"`
	ChannelName string                    `json:"channelName"`
	Users       map[string]channel.Member `json:"users"`
}

// NewUserList builds a user-list event for the given membership snapshot.
func NewUserList(channelName string, users map[string]channel.Member) UserListEvent {
	return UserListEvent{
		Kind:        "user-list",
		Timestamp:   time.Now().Unix(),
		ChannelName: channelName,
		Users:       users,
	}
}

// PongEvent answers a heartbeat ping, sender only.
type PongEvent struct {
	Kind      string `json:"kind"`
	Timestamp int64  `json:"timestamp"`
}

// NewPong builds a pong reply.
func NewPong() PongEvent {
	return PongEvent{Kind: "pong", Timestamp: time.Now().Unix()}
}

// ErrorEvent reports a validation or synthesis failure to one endpoint.
type ErrorEvent struct {
	Kind      string `json:"kind"`
	Timestamp int64  `json:"timestamp"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// NewError builds an error event with the given taxonomy code.
func NewError(code, message string) ErrorEvent {
	return ErrorEvent{
		Kind:      "error",
		Timestamp: time.Now().Unix(),
		Code:      code,
		Message:   message,
	}
}

// SynthesisEvent is the single terminal broadcast of a successful synthesis run.
type SynthesisEvent struct {
	Kind        string                `json:"kind"`
	Timestamp   int64                 `json:"timestamp"`
	UserUUID    string                `json:"userUuid"`
	ChannelName string                `json:"channelName"`
	Synthesis   *synthesis.Descriptor `json:"synthesis"`
}

// NewSynthesis builds the terminal add-synthesis broadcast event.
func NewSynthesis(userUUID, channelName string, desc *synthesis.Descriptor) SynthesisEvent {
	return SynthesisEvent{
		Kind:        "add-synthesis",
		Timestamp:   time.Now().Unix(),
		UserUUID:    userUUID,
		ChannelName: channelName,
		Synthesis:   desc,
	}
}
