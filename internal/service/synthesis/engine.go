package synthesis

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/zhouzirui/clipdesk/backend/internal/model/event"
	synthModel "github.com/zhouzirui/clipdesk/backend/internal/model/synthesis"
	"github.com/zhouzirui/clipdesk/backend/internal/service/ai"
	channelStore "github.com/zhouzirui/clipdesk/backend/internal/service/channel"
	"github.com/zhouzirui/clipdesk/backend/internal/service/session"
	"github.com/zhouzirui/clipdesk/backend/internal/transport"
)

// Completer is the external generation collaborator: one invocation per
// synthesis request, yielding partial messages until a terminal signal.
type Completer interface {
	StreamingEnabled() bool
	Complete(ctx context.Context, req ai.CompletionRequest) (*schema.Message, error)
	StreamCompletion(ctx context.Context, req ai.CompletionRequest) (*schema.StreamReader[*schema.Message], error)
}

// Engine turns the partial-result stream of one completion invocation into
// exactly one terminal action: a single add-synthesis broadcast on success,
// or a single direct error delivery to the originator on failure. Runs are
// independent; no accumulation state is shared between them.
type Engine struct {
	completer Completer
	store     *channelStore.Store
	registry  *session.Registry
}

// NewEngine wires the engine to its collaborator and shared state. completer
// may be nil when no model is configured; every run then fails over to the
// direct error path.
func NewEngine(completer Completer, store *channelStore.Store, registry *session.Registry) *Engine {
	return &Engine{completer: completer, store: store, registry: registry}
}

// Run drives one synthesis request to its terminal action. It blocks for the
// duration of the external call and holds no channel or session lock while
// doing so.
func (e *Engine) Run(ctx context.Context, identity, channelName string, desc *synthModel.Descriptor) {
	if desc.ID == "" {
		desc.ID = uuid.NewString()
	}

	if e.completer == nil {
		e.fail(identity, desc, errors.New("synthesis service unavailable"))
		return
	}

	req := ai.CompletionRequest{
		RequestID: desc.ID,
		UserUUID:  identity,
		Prompt:    desc.Prompt,
		Clips:     desc.Clips,
	}

	if !e.completer.StreamingEnabled() {
		response, err := e.completer.Complete(ctx, req)
		if err != nil {
			e.fail(identity, desc, err)
			return
		}
		desc.Output = response.Content
		e.finish(identity, channelName, desc)
		return
	}

	stream, err := e.completer.StreamCompletion(ctx, req)
	if err != nil {
		e.fail(identity, desc, err)
		return
	}
	defer stream.Close()

	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			e.fail(identity, desc, recvErr)
			return
		}
		if chunk == nil {
			continue
		}
		desc.Output += chunk.Content
	}

	e.finish(identity, channelName, desc)
}

// finish broadcasts the completed synthesis to the channel. A channel that
// vanished mid-stream makes the broadcast a no-op, not an error.
func (e *Engine) finish(identity, channelName string, desc *synthModel.Descriptor) {
	endpoints, ok := e.store.Endpoints(channelName)
	if !ok {
		log.Printf("[synthesis] channel %s gone, dropping completed request %s", channelName, desc.ID)
		return
	}

	log.Printf("[synthesis] request %s completed for channel %s, length=%d", desc.ID, channelName, len(desc.Output))
	transport.Fanout(endpoints, event.NewSynthesis(identity, channelName, desc))
}

// fail notifies the originator directly, independent of channel state. With
// no live session left the failure is logged and dropped.
func (e *Engine) fail(identity string, desc *synthModel.Descriptor, cause error) {
	log.Printf("[synthesis] request %s failed for user %s: %v", desc.ID, identity, cause)

	ep, ok := e.registry.Lookup(identity)
	if !ok {
		log.Printf("[synthesis] no live session for user %s, dropping error", identity)
		return
	}
	if err := ep.Send(event.NewError(event.CodeSynthesisFailure, cause.Error())); err != nil {
		log.Printf("[synthesis] error delivery to %s failed: %v", identity, err)
	}
}
