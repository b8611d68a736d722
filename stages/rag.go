package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/creastat/infra/telemetry"
	providers "github.com/creastat/providers/core"
	"github.com/creastat/reactive/core"
	"github.com/creastat/storage/vectorstore"
)

// RetrieverConfig holds retrieval configuration.
type RetrieverConfig struct {
	// VectorStore is the vector store to search.
	VectorStore vectorstore.VectorStore

	// EmbeddingProvider generates embeddings for queries.
	EmbeddingProvider providers.EmbeddingProvider

	// EmbeddingModel is the model to use for embeddings.
	EmbeddingModel string

	// SourceID filters results to a specific source.
	SourceID string

	// Threshold is the minimum similarity score (0.0-1.0).
	Threshold float32

	// MaxChunks is the maximum number of chunks to retrieve.
	MaxChunks int

	Logger telemetry.Logger
}

// Retriever looks up context chunks for queries in a vector store.
type Retriever struct {
	config RetrieverConfig
	logger telemetry.Logger
}

// NewRetriever creates a new retriever.
func NewRetriever(config RetrieverConfig) *Retriever {
	if config.MaxChunks <= 0 {
		config.MaxChunks = 5
	}
	if config.Threshold <= 0 {
		config.Threshold = 0.7
	}
	return &Retriever{
		config: config,
		logger: moduleLogger(config.Logger, "rag"),
	}
}

// Retrieve embeds query and returns the matching chunks with non-empty
// content. A retriever without a store or embedding provider finds nothing.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]vectorstore.SearchResult, error) {
	if r.config.VectorStore == nil || r.config.EmbeddingProvider == nil {
		r.logger.Debug("retriever not configured, skipping search")
		return nil, nil
	}

	embResp, err := r.config.EmbeddingProvider.GenerateEmbedding(ctx, providers.EmbeddingRequest{
		Model: r.config.EmbeddingModel,
		Text:  query,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	filter := vectorstore.SearchFilter{
		SourceID: r.config.SourceID,
		MinScore: r.config.Threshold,
	}

	results, err := r.config.VectorStore.Search(ctx, embResp.Vector, filter, r.config.MaxChunks)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	chunks := make([]vectorstore.SearchResult, 0, len(results))
	for _, result := range results {
		if result.Content == "" {
			continue
		}
		chunks = append(chunks, result)
	}

	r.logger.Debug("search finished",
		telemetry.String("source_id", r.config.SourceID),
		telemetry.Int("results", len(results)),
		telemetry.Int("chunks", len(chunks)))

	return chunks, nil
}

// Search returns a FlatMap mapper projecting each query to the sequence of
// its matching chunks
func (r *Retriever) Search(ctx context.Context) func(string) ([]vectorstore.SearchResult, error) {
	return func(query string) ([]vectorstore.SearchResult, error) {
		return r.Retrieve(ctx, query)
	}
}

// SearchAsync returns a FlatMap mapper projecting each query to a future of
// its matching chunks. Searches for different queries run concurrently.
func (r *Retriever) SearchAsync(ctx context.Context) func(string) core.Future[[]vectorstore.SearchResult] {
	return func(query string) core.Future[[]vectorstore.SearchResult] {
		return core.Go(ctx, func(ctx context.Context) ([]vectorstore.SearchResult, error) {
			return r.Retrieve(ctx, query)
		})
	}
}

// FormatContext joins chunk contents into a prompt context block
func FormatContext(results []vectorstore.SearchResult) string {
	var contextParts []string
	for _, result := range results {
		if result.Content == "" {
			continue
		}
		contextParts = append(contextParts, result.Content)
	}
	return strings.Join(contextParts, "\n\n---\n\n")
}
