package relay

import (
	"context"
	"encoding/json"
	"log"

	"github.com/zhouzirui/clipdesk/backend/internal/model/event"
	"github.com/zhouzirui/clipdesk/backend/internal/model/synthesis"
	channelStore "github.com/zhouzirui/clipdesk/backend/internal/service/channel"
	"github.com/zhouzirui/clipdesk/backend/internal/transport"
)

// SynthesisRunner starts one streaming synthesis run. The run outlives the
// dispatch call; its terminal broadcast or error delivery happens on its own
// goroutine.
type SynthesisRunner interface {
	Run(ctx context.Context, identity, channelName string, desc *synthesis.Descriptor)
}

// Router validates inbound message envelopes and dispatches them to a direct
// reply, a channel re-broadcast or a synthesis run. Validation failures go
// back to the sending endpoint only and never touch shared state.
type Router struct {
	store  *channelStore.Store
	msgLog *MessageLog
	synth  SynthesisRunner
}

// NewRouter wires a router to the channel store, diagnostic log and
// synthesis runner.
func NewRouter(store *channelStore.Store, msgLog *MessageLog, synth SynthesisRunner) *Router {
	return &Router{store: store, msgLog: msgLog, synth: synth}
}

// Dispatch routes one raw message envelope from sender. Delivery failures
// during fan-out are best effort and never abort the remaining endpoints.
func (r *Router) Dispatch(sender transport.Endpoint, raw json.RawMessage) {
	var msg event.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.reject(sender, event.CodeInvalidMessageFormat, "malformed message payload")
		return
	}
	if msg.UserUUID == "" || msg.ChannelName == "" || msg.Type == "" || msg.Timestamp == 0 {
		r.reject(sender, event.CodeInvalidMessageFormat, "userUuid, channelName, type and timestamp are required")
		return
	}

	if !r.store.IsMember(msg.ChannelName, msg.UserUUID) {
		r.reject(sender, event.CodeUnknownChannelOrParticipant, "sender is not a member of channel "+msg.ChannelName)
		return
	}

	r.msgLog.Append(msg)

	switch msg.Type {
	case event.TypeHeartbeat:
		r.handleHeartbeat(sender, raw)

	case event.TypeAddSynthesis:
		r.handleAddSynthesis(sender, msg, raw)

	case event.TypeAddDocument, event.TypeRemoveDocument,
		event.TypeAddClip, event.TypeRemoveClip, event.TypeVoteClip,
		event.TypeTranscriptionUpdate, event.TypeFlagSentence,
		event.TypeRemoveSynthesis, event.TypeChatDraft, event.TypeChatMessage,
		event.TypeAgentMessage:
		r.broadcast(msg.ChannelName, raw)

	default:
		r.reject(sender, event.CodeUnknownMessageKind, "unknown message type: "+string(msg.Type))
	}
}

// handleHeartbeat answers a ping with a pong to the sender only.
func (r *Router) handleHeartbeat(sender transport.Endpoint, raw json.RawMessage) {
	var payload event.HeartbeatPayload
	if err := json.Unmarshal(raw, &payload); err != nil || !payload.Ping {
		return
	}
	if err := sender.Send(event.NewPong()); err != nil {
		log.Printf("[relay] pong to %s failed: %v", sender.ID(), err)
	}
}

func (r *Router) handleAddSynthesis(sender transport.Endpoint, msg event.Message, raw json.RawMessage) {
	var payload event.SynthesisPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Synthesis == nil {
		r.reject(sender, event.CodeInvalidMessageFormat, "add-synthesis requires a synthesis descriptor")
		return
	}

	// The run must survive the sender's connection: disconnect does not
	// cancel an in-flight completion, it only affects whether the terminal
	// broadcast still finds a live channel.
	go r.synth.Run(context.Background(), msg.UserUUID, msg.ChannelName, payload.Synthesis)
}

// broadcast re-sends the original wire bytes to every current member of the
// channel, the sender included.
func (r *Router) broadcast(channelName string, raw json.RawMessage) {
	endpoints, ok := r.store.Endpoints(channelName)
	if !ok {
		return
	}
	transport.Fanout(endpoints, raw)
}

func (r *Router) reject(sender transport.Endpoint, code, message string) {
	if err := sender.Send(event.NewError(code, message)); err != nil {
		log.Printf("[relay] error reply to %s failed: %v", sender.ID(), err)
	}
}
