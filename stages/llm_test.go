package stages

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/creastat/infra/telemetry"
	providers "github.com/creastat/providers/core"
	"github.com/creastat/reactive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var testLogger = telemetry.New(telemetry.Config{Level: "error"})

// For any response text, the completion stream SHALL emit chunks that together
// form the full response, then complete.
func TestPropertyChatCompletionOutput(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		words := rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,8}`), 1, 20).Draw(rt, "words")
		responseText := strings.Join(words, " ")

		stream := ChatCompletion(context.Background(), ChatConfig{
			Provider: &TestStreamingLLMProvider{responseText: responseText},
			Model:    "gpt-4",
			Logger:   testLogger,
		}, providers.ChatRequest{Model: "gpt-4"})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		chunks, err := reactive.Collect(ctx, stream)
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		if got := strings.Join(chunks, ""); got != responseText {
			rt.Fatalf("expected %q, got %q", responseText, got)
		}
	})
}

func TestChatCompletionWithoutLogger(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	chunks, err := reactive.Collect(ctx, ChatCompletion(ctx, ChatConfig{
		Provider: &TestStreamingLLMProvider{responseText: "no logger"},
	}, providers.ChatRequest{}))
	require.NoError(t, err)
	assert.Equal(t, "no logger", strings.Join(chunks, ""))
}

func TestChatCompletionStartError(t *testing.T) {
	mockLLM := new(MockLLMProvider)
	mockLLM.On("StreamChatCompletion", mock.Anything, mock.Anything).Return(nil, errors.New("unavailable"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := reactive.Collect(ctx, ChatCompletion(ctx, ChatConfig{Provider: mockLLM, Logger: testLogger}, providers.ChatRequest{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start LLM stream")
	mockLLM.AssertExpectations(t)
}

func TestChatCompletionReceiveError(t *testing.T) {
	mockLLM := new(MockLLMProvider)
	mockChatStream := new(MockChatStream)

	receiveErr := errors.New("connection reset")
	mockChatStream.On("Receive", mock.Anything).Return(&providers.ChatChunk{Content: "Hi"}, nil).Once()
	mockChatStream.On("Receive", mock.Anything).Return(nil, receiveErr).Once()
	closed := make(chan struct{})
	mockChatStream.On("Close").Run(func(mock.Arguments) { close(closed) }).Return(nil)
	mockLLM.On("StreamChatCompletion", mock.Anything, mock.Anything).Return(mockChatStream, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ch := reactive.ToChannel(ctx, ChatCompletion(ctx, ChatConfig{Provider: mockLLM, Logger: testLogger}, providers.ChatRequest{}), 10)

	var values []string
	var err error
	for n := range ch {
		if n.Err != nil {
			err = n.Err
		} else if n.Kind.IsTerminal() {
			t.Fatal("stream completed instead of failing")
		} else {
			values = append(values, n.Value)
		}
	}

	assert.Equal(t, []string{"Hi"}, values)
	assert.ErrorIs(t, err, receiveErr)

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("provider stream was not closed")
	}
	mockChatStream.AssertExpectations(t)
}

func TestChatCompletionEOFCompletes(t *testing.T) {
	mockLLM := new(MockLLMProvider)
	mockChatStream := new(MockChatStream)

	mockChatStream.On("Receive", mock.Anything).Return(&providers.ChatChunk{Content: "Hello"}, nil).Once()
	mockChatStream.On("Receive", mock.Anything).Return(&providers.ChatChunk{Content: ""}, nil).Once()
	mockChatStream.On("Receive", mock.Anything).Return(&providers.ChatChunk{Content: " "}, nil).Once()
	mockChatStream.On("Receive", mock.Anything).Return(&providers.ChatChunk{Content: "world"}, nil).Once()
	mockChatStream.On("Receive", mock.Anything).Return(nil, io.EOF).Once()
	closed := make(chan struct{})
	mockChatStream.On("Close").Run(func(mock.Arguments) { close(closed) }).Return(nil)
	mockLLM.On("StreamChatCompletion", mock.Anything, mock.Anything).Return(mockChatStream, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	chunks, err := reactive.Collect(ctx, ChatCompletion(ctx, ChatConfig{Provider: mockLLM, Logger: testLogger}, providers.ChatRequest{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", " ", "world"}, chunks)

	// Close runs after the terminal notification
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("provider stream was not closed")
	}
	mockChatStream.AssertExpectations(t)
}

func TestChatCompletionDisposeClosesStream(t *testing.T) {
	mockLLM := new(MockLLMProvider)
	mockChatStream := new(MockChatStream)

	closed := make(chan struct{})
	mockChatStream.On("Receive", mock.Anything).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(nil, context.Canceled)
	mockChatStream.On("Close").Run(func(mock.Arguments) { close(closed) }).Return(nil)
	mockLLM.On("StreamChatCompletion", mock.Anything, mock.Anything).Return(mockChatStream, nil)

	var terminated bool
	sub := reactive.Subscribe(
		ChatCompletion(context.Background(), ChatConfig{Provider: mockLLM, Logger: testLogger}, providers.ChatRequest{}),
		func(string) {},
		func(error) { terminated = true },
		func() { terminated = true },
	)
	sub.Dispose()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("provider stream was not closed after dispose")
	}
	assert.False(t, terminated, "no notification after dispose")
}

func TestBuildRequest(t *testing.T) {
	temperature := 0.2
	config := ChatConfig{
		Model:        "test-model",
		Temperature:  &temperature,
		SystemPrompt: "be brief",
		ConversationHistory: []providers.Message{
			{Role: "user", Content: "earlier"},
			{Role: "assistant", Content: "reply"},
		},
	}

	req := BuildRequest(config, "  question  ")

	assert.Equal(t, "test-model", req.Model)
	assert.Equal(t, &temperature, req.Temperature)
	require.Len(t, req.Messages, 4)
	assert.Equal(t, providers.Message{Role: "system", Content: "be brief"}, req.Messages[0])
	assert.Equal(t, "earlier", req.Messages[1].Content)
	assert.Equal(t, providers.Message{Role: "user", Content: "question"}, req.Messages[3])
}

// For any set of prompts, FlatMap over PromptMapper SHALL emit every chunk of
// every answer, keeping each answer's chunks in order.
func TestPropertyPromptMapperFlatMap(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		prompts := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{3,6}`), 1, 5, rapid.ID[string]).Draw(rt, "prompts")
		chunksPerPrompt := rapid.IntRange(0, 5).Draw(rt, "chunksPerPrompt")

		config := ChatConfig{
			Provider: &TestEchoLLMProvider{chunks: chunksPerPrompt},
			Model:    "test-model",
			Logger:   testLogger,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		answers := reactive.FlatMap[string, string](PromptMapper(ctx, config), reactive.WithLogger(testLogger))(reactive.FromSlice(prompts))
		chunks, err := reactive.Collect(ctx, answers)
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		if len(chunks) != len(prompts)*chunksPerPrompt {
			rt.Fatalf("expected %d chunks, got %d", len(prompts)*chunksPerPrompt, len(chunks))
		}

		for _, prompt := range prompts {
			var got []string
			for _, chunk := range chunks {
				if strings.HasPrefix(chunk, prompt+":") {
					got = append(got, chunk)
				}
			}
			want := make([]string, chunksPerPrompt)
			for i := range want {
				want[i] = fmt.Sprintf("%s:%d", prompt, i)
			}
			if !slices.Equal(got, want) {
				rt.Fatalf("answer to %q out of order: %v", prompt, got)
			}
		}
	})
}

// TestStreamingLLMProvider provides streaming responses for testing
type TestStreamingLLMProvider struct {
	responseText string
}

func (m *TestStreamingLLMProvider) Name() string                 { return "test-streaming-llm" }
func (m *TestStreamingLLMProvider) Type() providers.ProviderType { return "test" }
func (m *TestStreamingLLMProvider) Initialize(ctx context.Context, config providers.ProviderConfig) error {
	return nil
}
func (m *TestStreamingLLMProvider) Close() error                          { return nil }
func (m *TestStreamingLLMProvider) HealthCheck(ctx context.Context) error { return nil }
func (m *TestStreamingLLMProvider) Capabilities() []providers.Capability {
	return []providers.Capability{providers.CapabilityLLM}
}
func (m *TestStreamingLLMProvider) SupportsCapability(capability providers.Capability) bool {
	return capability == providers.CapabilityLLM
}
func (m *TestStreamingLLMProvider) ChatCompletion(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	return nil, nil
}
func (m *TestStreamingLLMProvider) StreamChatCompletion(ctx context.Context, req providers.ChatRequest) (providers.ChatStream, error) {
	return &TestChatStream{words: splitWords(m.responseText)}, nil
}

// TestEchoLLMProvider answers each request with numbered chunks tagged with
// the last message content
type TestEchoLLMProvider struct {
	TestStreamingLLMProvider
	chunks int
}

func (m *TestEchoLLMProvider) StreamChatCompletion(ctx context.Context, req providers.ChatRequest) (providers.ChatStream, error) {
	prompt := req.Messages[len(req.Messages)-1].Content
	words := make([]string, m.chunks)
	for i := range words {
		words[i] = fmt.Sprintf("%s:%d", prompt, i)
	}
	return &TestChatStream{words: words}, nil
}

// TestChatStream provides streaming chat responses
type TestChatStream struct {
	words  []string
	chunks int
}

func (s *TestChatStream) Receive(ctx context.Context) (*providers.ChatChunk, error) {
	if s.chunks >= len(s.words) {
		return &providers.ChatChunk{Done: true}, nil
	}

	chunk := s.words[s.chunks]
	s.chunks++

	return &providers.ChatChunk{
		Content: chunk,
		Done:    false,
	}, nil
}

func (s *TestChatStream) Close() error {
	return nil
}

// splitWords splits text into words and the spaces between them
func splitWords(text string) []string {
	words := []string{}
	word := ""
	for _, char := range text {
		if char == ' ' {
			if word != "" {
				words = append(words, word)
				word = ""
			}
			words = append(words, " ")
		} else {
			word += string(char)
		}
	}
	if word != "" {
		words = append(words, word)
	}
	return words
}

// MockLLMProvider
type MockLLMProvider struct{ mock.Mock }

func (m *MockLLMProvider) Name() string                 { return "mock-llm" }
func (m *MockLLMProvider) Type() providers.ProviderType { return providers.ProviderTypeOpenAI }
func (m *MockLLMProvider) Initialize(ctx context.Context, config providers.ProviderConfig) error {
	return nil
}
func (m *MockLLMProvider) Close() error                          { return nil }
func (m *MockLLMProvider) HealthCheck(ctx context.Context) error { return nil }
func (m *MockLLMProvider) Capabilities() []providers.Capability {
	return []providers.Capability{providers.CapabilityLLM}
}
func (m *MockLLMProvider) SupportsCapability(c providers.Capability) bool {
	return c == providers.CapabilityLLM
}
func (m *MockLLMProvider) ChatCompletion(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	return nil, nil
}
func (m *MockLLMProvider) StreamChatCompletion(ctx context.Context, req providers.ChatRequest) (providers.ChatStream, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(providers.ChatStream), args.Error(1)
}

type MockChatStream struct{ mock.Mock }

func (m *MockChatStream) Receive(ctx context.Context) (*providers.ChatChunk, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.ChatChunk), args.Error(1)
}
func (m *MockChatStream) Close() error { return m.Called().Error(0) }
