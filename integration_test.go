package reactive_test

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/creastat/infra/telemetry"
	providers "github.com/creastat/providers/core"
	"github.com/creastat/reactive"
	"github.com/creastat/reactive/stages"
	"github.com/creastat/storage/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

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

// MockEmbeddingProvider
type MockEmbeddingProvider struct{ mock.Mock }

func (m *MockEmbeddingProvider) Name() string                 { return "mock-embedding" }
func (m *MockEmbeddingProvider) Type() providers.ProviderType { return providers.ProviderTypeOpenAI }
func (m *MockEmbeddingProvider) Initialize(ctx context.Context, config providers.ProviderConfig) error {
	return nil
}
func (m *MockEmbeddingProvider) Close() error                          { return nil }
func (m *MockEmbeddingProvider) HealthCheck(ctx context.Context) error { return nil }
func (m *MockEmbeddingProvider) Capabilities() []providers.Capability {
	return []providers.Capability{providers.CapabilityEmbedding}
}
func (m *MockEmbeddingProvider) SupportsCapability(c providers.Capability) bool {
	return c == providers.CapabilityEmbedding
}
func (m *MockEmbeddingProvider) GenerateEmbedding(ctx context.Context, req providers.EmbeddingRequest) (*providers.EmbeddingResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.EmbeddingResponse), args.Error(1)
}

// MockVectorStore
type MockVectorStore struct{ mock.Mock }

func (m *MockVectorStore) Search(ctx context.Context, vector []float32, filter vectorstore.SearchFilter, limit int) ([]vectorstore.SearchResult, error) {
	args := m.Called(ctx, vector, filter, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vectorstore.SearchResult), args.Error(1)
}
func (m *MockVectorStore) Close() error { return nil }

// chatStreamFor returns a mock stream emitting chunks then io.EOF
func chatStreamFor(chunks ...string) *MockChatStream {
	s := new(MockChatStream)
	for _, c := range chunks {
		s.On("Receive", mock.Anything).Return(&providers.ChatChunk{Content: c}, nil).Once()
	}
	s.On("Receive", mock.Anything).Return(nil, io.EOF).Once()
	s.On("Close").Return(nil)
	return s
}

func TestRetrieveThenAnswerFlow(t *testing.T) {
	logger := telemetry.New(telemetry.Config{Level: "error"})

	mockEmbedding := new(MockEmbeddingProvider)
	mockStore := new(MockVectorStore)
	mockLLM := new(MockLLMProvider)

	mockEmbedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(&providers.EmbeddingResponse{
		Vector: []float32{0.1, 0.2, 0.3},
	}, nil)
	mockStore.On("Search", mock.Anything, mock.Anything, vectorstore.SearchFilter{SourceID: "docs", MinScore: 0.7}, 5).Return([]vectorstore.SearchResult{
		{ID: "chunk_1", Score: 0.9, Content: "Go has goroutines", SourceID: "docs"},
	}, nil)

	streams := map[string]*MockChatStream{}
	for _, q := range []string{"what", "why"} {
		streams[q] = chatStreamFor(q+"-1", q+"-2")
	}
	for q, s := range streams {
		mockLLM.On("StreamChatCompletion", mock.Anything, mock.MatchedBy(func(req providers.ChatRequest) bool {
			last := req.Messages[len(req.Messages)-1].Content
			return strings.HasSuffix(last, "Question: "+q) && strings.Contains(last, "Go has goroutines")
		})).Return(s, nil)
	}

	retriever := stages.NewRetriever(stages.RetrieverConfig{
		VectorStore:       mockStore,
		EmbeddingProvider: mockEmbedding,
		SourceID:          "docs",
		Logger:            logger,
	})
	chat := stages.ChatConfig{
		Provider:     mockLLM,
		Model:        "test-model",
		SystemPrompt: "answer from context",
		Logger:       logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	queries := reactive.Of("what", "why")
	prompts := reactive.FlatMapIndexed[string, string](func(query string, _ int) ([]string, error) {
		results, err := retriever.Retrieve(ctx, query)
		if err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("Context:\n%s\n\nQuestion: %s", stages.FormatContext(results), query)}, nil
	}, reactive.WithLogger(logger))
	answers := reactive.FlatMap[string, string](stages.PromptMapper(ctx, chat), reactive.WithLogger(logger))

	chunks, err := reactive.Collect(ctx, reactive.Compose(prompts, answers)(queries))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"what-1", "what-2", "why-1", "why-2"}, chunks)
	assert.Less(t, indexOf(chunks, "what-1"), indexOf(chunks, "what-2"))
	assert.Less(t, indexOf(chunks, "why-1"), indexOf(chunks, "why-2"))

	mockEmbedding.AssertExpectations(t)
	mockStore.AssertExpectations(t)
	mockLLM.AssertExpectations(t)
}

func TestChatRequestsFlatMapFailure(t *testing.T) {
	logger := telemetry.New(telemetry.Config{Level: "error"})

	failing := new(MockChatStream)
	failing.On("Receive", mock.Anything).Return(nil, assert.AnError).Once()
	failing.On("Close").Return(nil)

	mockLLM := new(MockLLMProvider)
	mockLLM.On("StreamChatCompletion", mock.Anything, mock.Anything).Return(failing, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	requests := reactive.Of(providers.ChatRequest{Model: "test-model"})
	_, err := reactive.Collect(ctx, reactive.FlatMap[providers.ChatRequest, string](stages.ChatMapper(ctx, stages.ChatConfig{
		Provider: mockLLM,
		Logger:   logger,
	}))(requests))

	require.ErrorIs(t, err, assert.AnError)
}

func indexOf(values []string, v string) int {
	for i, value := range values {
		if value == v {
			return i
		}
	}
	return -1
}
