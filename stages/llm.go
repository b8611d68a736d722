package stages

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/creastat/infra/telemetry"
	providers "github.com/creastat/providers/core"
	"github.com/creastat/reactive"
	"github.com/creastat/reactive/core"
)

// ChatConfig holds chat completion configuration
type ChatConfig struct {
	Provider            providers.LLMProvider
	Model               string
	Temperature         *float64
	MaxTokens           *int
	SystemPrompt        string
	ConversationHistory []providers.Message
	Logger              telemetry.Logger
}

// ChatCompletion streams the content deltas of one chat completion.
//
// The provider stream is opened on subscribe and closed once it ends or the
// subscription is disposed. The output completes on io.EOF or a done chunk;
// any other receive error terminates it.
func ChatCompletion(ctx context.Context, config ChatConfig, req providers.ChatRequest) core.Stream[string] {
	return reactive.Create(func(observer core.Observer[string]) core.Disposable {
		ctx, cancel := context.WithCancel(ctx)
		go receiveChat(ctx, cancel, config, req, observer)
		return reactive.NewDisposable(cancel)
	})
}

func receiveChat(ctx context.Context, cancel context.CancelFunc, config ChatConfig, req providers.ChatRequest, observer core.Observer[string]) {
	defer cancel()
	logger := moduleLogger(config.Logger, "llm")

	stream, err := config.Provider.StreamChatCompletion(ctx, req)
	if err != nil {
		logger.Error("Failed to start LLM stream", telemetry.Err(err))
		observer.OnError(fmt.Errorf("failed to start LLM stream: %w", err))
		return
	}
	defer stream.Close()

	chunkCount := 0
	for {
		chunk, err := stream.Receive(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("LLM stream cancelled", telemetry.Int("chunks_received", chunkCount))
			} else {
				logger.Error("Error receiving LLM chunk", telemetry.Err(err), telemetry.Int("chunks_received", chunkCount))
			}
			observer.OnError(fmt.Errorf("error receiving LLM chunk: %w", err))
			return
		}
		if chunk == nil || chunk.Done {
			break
		}

		// Skip only completely empty chunks, preserve spaces
		if chunk.Content == "" {
			continue
		}
		chunkCount++
		observer.OnNext(chunk.Content)
	}

	logger.Debug("LLM stream finished", telemetry.Int("chunks_received", chunkCount))
	observer.OnCompleted()
}

// ChatMapper returns a FlatMap mapper that opens one completion per request
func ChatMapper(ctx context.Context, config ChatConfig) func(providers.ChatRequest) core.Stream[string] {
	return func(req providers.ChatRequest) core.Stream[string] {
		return ChatCompletion(ctx, config, req)
	}
}

// PromptMapper returns a FlatMap mapper that answers each prompt with a
// completion built by BuildRequest
func PromptMapper(ctx context.Context, config ChatConfig) func(string) core.Stream[string] {
	return func(prompt string) core.Stream[string] {
		return ChatCompletion(ctx, config, BuildRequest(config, prompt))
	}
}

// BuildRequest creates a chat request for a single user prompt. The system
// prompt, if any, is always at index 0, followed by the conversation history.
func BuildRequest(config ChatConfig, prompt string) providers.ChatRequest {
	messages := []providers.Message{}

	if config.SystemPrompt != "" {
		messages = append(messages, providers.Message{
			Role:    "system",
			Content: config.SystemPrompt,
		})
	}

	if len(config.ConversationHistory) > 0 {
		messages = append(messages, config.ConversationHistory...)
	}

	messages = append(messages, providers.Message{
		Role:    "user",
		Content: strings.TrimSpace(prompt),
	})

	return providers.ChatRequest{
		Model:       config.Model,
		Messages:    messages,
		Temperature: config.Temperature,
		MaxTokens:   config.MaxTokens,
	}
}
