package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/clipdesk/backend/internal/config"
)

const systemPrompt = "You are a writing assistant embedded in a collaborative " +
	"clip studio. Channel members share source clips and ask you to compose a " +
	"synthesis from them. Use the provided clips as source material and answer " +
	"with the synthesized text only, no preamble."

// CompletionRequest describes one synthesis completion: the originating
// participant, the synthesis prompt and the ordered source clips supplied as
// prior conversational context.
type CompletionRequest struct {
	RequestID string
	UserUUID  string
	Prompt    string
	Clips     []string
}

// Service encapsulates the completion model behind a compiled eino chain.
type Service struct {
	chatModel model.ChatModel
	cfg       config.AIConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates the completion service from configuration.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("clips", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile completion chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		cfg:       cfg,
		chain:     runnable,
	}, nil
}

// StreamingEnabled reports whether completions run in streaming mode.
func (s *Service) StreamingEnabled() bool {
	return s.cfg.StreamResponse
}

// Complete runs one completion to its final message, non-streaming.
func (s *Service) Complete(ctx context.Context, req CompletionRequest) (*schema.Message, error) {
	response, err := s.chain.Invoke(ctx, s.buildChainInput(req))
	if err != nil {
		return nil, fmt.Errorf("failed to run completion chain: %w", err)
	}

	log.Printf("[ai] completed synthesis request=%s user=%s length=%d", req.RequestID, req.UserUUID, len(response.Content))
	return response, nil
}

// StreamCompletion starts one streaming completion. The reader yields partial
// messages and terminates with io.EOF on success or a single error otherwise.
func (s *Service) StreamCompletion(ctx context.Context, req CompletionRequest) (*schema.StreamReader[*schema.Message], error) {
	if !s.StreamingEnabled() {
		return nil, fmt.Errorf("streaming disabled in configuration")
	}

	stream, err := s.chain.Stream(ctx, s.buildChainInput(req))
	if err != nil {
		return nil, fmt.Errorf("failed to stream completion chain: %w", err)
	}
	return stream, nil
}

func (s *Service) buildChainInput(req CompletionRequest) map[string]any {
	clips := make([]*schema.Message, 0, len(req.Clips))
	for _, clip := range req.Clips {
		clips = append(clips, schema.UserMessage(clip))
	}

	return map[string]any{
		"system": systemPrompt,
		"clips":  clips,
		"query":  req.Prompt,
	}
}
