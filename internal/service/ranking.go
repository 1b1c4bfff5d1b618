package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rentscope/internal/config"
	"rentscope/internal/model"
	"rentscope/internal/utils"

	"github.com/sirupsen/logrus"
)

// RankingClient talks to an OpenAI-compatible API to score candidate
// properties against a free-text query. Every failure mode (network,
// timeout, non-success status, unparsable or out-of-schema payload) is
// reported as model.ErrRankingUnavailable so the caller can fall back to
// deterministic results. A valid ranking where nothing scores well is a
// success, not a failure.
type RankingClient struct {
	cfg        *config.RankingConfig
	httpClient *http.Client
	log        *logrus.Logger
}

// NewRankingClient creates a ranking client with a bounded request timeout.
func NewRankingClient(cfg *config.RankingConfig, log *logrus.Logger) *RankingClient {
	return &RankingClient{
		cfg: cfg,
		log: log,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

// Enabled returns whether the client is configured and ready.
func (c *RankingClient) Enabled() bool {
	return c.cfg.Enabled
}

// candidateSummary is the compact per-candidate payload sent to the ranking
// service, indexed by position in the candidates slice. Response indexes
// are defined relative to this exact order.
type candidateSummary struct {
	Title        string   `json:"title"`
	Location     string   `json:"location"`
	Price        float64  `json:"price"`
	PropertyType string   `json:"property_type"`
	Bedrooms     int      `json:"bedrooms"`
	Bathrooms    float64  `json:"bathrooms"`
	Description  string   `json:"description"`
	Amenities    []string `json:"amenities"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"` // "json_object" or "text"
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	TopP           float64         `json:"top_p,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

const rankingSystemPrompt = `You are a rental property relevance judge. Given a renter's free-text query and a JSON array of candidate properties, score how well each candidate matches the query.

Rules:
- Score every candidate from 0 (irrelevant) to 100 (perfect match).
- propertyIndex is the candidate's zero-based position in the input array.
- explanation is one short sentence on why the candidate got its score.
- searchInsights is a one-or-two sentence summary of the overall result set.
- Low scores across the board are a valid answer when nothing fits.
- Respond ONLY with valid JSON of the form:
{"rankings":[{"propertyIndex":0,"score":92,"explanation":"..."}],"searchInsights":"..."}`

// Rank scores candidates against a free-text query. An empty trimmed query
// or empty candidate list short-circuits to an empty result without a
// network call.
func (c *RankingClient) Rank(ctx context.Context, query string, candidates []model.Property) (*model.RankingResult, error) {
	query = strings.TrimSpace(query)
	if query == "" || len(candidates) == 0 {
		return &model.RankingResult{Rankings: []model.RankingEntry{}}, nil
	}

	if !c.cfg.Enabled {
		return nil, fmt.Errorf("%w: no API key configured", model.ErrRankingUnavailable)
	}

	payload, err := json.Marshal(summarizeCandidates(candidates))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode candidates: %v", model.ErrRankingUnavailable, err)
	}

	userPrompt := fmt.Sprintf("Query: %s\n\nCandidates:\n%s", query, payload)
	req := chatCompletionRequest{
		Model: c.cfg.ChatModel,
		Messages: []chatMessage{
			{Role: "system", Content: rankingSystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    c.cfg.ChatTemperature,
		TopP:           c.cfg.ChatTopP,
		MaxTokens:      c.cfg.ChatMaxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	resp, err := c.chatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrRankingUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", model.ErrRankingUnavailable)
	}

	content := resp.Choices[0].Message.Content
	var result model.RankingResult
	if err := utils.ParseModelJSON(content, &result); err != nil {
		c.log.WithField("content_len", len(content)).Warn("Ranking response did not parse as JSON")
		return nil, fmt.Errorf("%w: %v", model.ErrRankingUnavailable, err)
	}

	if err := validateRanking(&result, len(candidates)); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrRankingUnavailable, err)
	}

	c.log.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"rankings":   len(result.Rankings),
		"tokens":     resp.Usage.TotalTokens,
	}).Debug("Ranking completed")

	return &result, nil
}

// summarizeCandidates builds the indexed request payload. Missing optional
// fields are sent as zero values rather than omitted so every candidate has
// the same shape.
func summarizeCandidates(candidates []model.Property) []candidateSummary {
	summaries := make([]candidateSummary, len(candidates))
	for i, p := range candidates {
		s := candidateSummary{Amenities: p.Amenities}
		if s.Amenities == nil {
			s.Amenities = []string{}
		}
		if p.Title != nil {
			s.Title = *p.Title
		}
		if p.Location != nil {
			s.Location = *p.Location
		}
		if p.Price != nil {
			s.Price = *p.Price
		}
		if p.PropertyType != nil {
			s.PropertyType = *p.PropertyType
		}
		if p.Bedrooms != nil {
			s.Bedrooms = *p.Bedrooms
		}
		if p.Bathrooms != nil {
			s.Bathrooms = *p.Bathrooms
		}
		if p.Description != nil {
			s.Description = *p.Description
		}
		summaries[i] = s
	}
	return summaries
}

// validateRanking rejects payloads that deviate from the expected schema.
func validateRanking(result *model.RankingResult, candidateCount int) error {
	if result.Rankings == nil {
		return fmt.Errorf("missing rankings field")
	}
	for _, e := range result.Rankings {
		if e.PropertyIndex < 0 || e.PropertyIndex >= candidateCount {
			return fmt.Errorf("propertyIndex %d out of range [0,%d)", e.PropertyIndex, candidateCount)
		}
		if e.Score < 0 || e.Score > 100 {
			return fmt.Errorf("score %.2f outside [0,100]", e.Score)
		}
	}
	return nil
}

// chatCompletion performs a chat completion request.
func (c *RankingClient) chatCompletion(ctx context.Context, req chatCompletionRequest) (*chatCompletionResponse, error) {
	body, err := c.postJSON(ctx, "/chat/completions", req)
	if err != nil {
		return nil, err
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// CreateEmbeddings creates embeddings for the given texts, batching per
// the configured batch size.
func (c *RankingClient) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if !c.cfg.Enabled {
		return nil, fmt.Errorf("%w: no API key configured", model.ErrRankingUnavailable)
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	batchSize := c.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = len(texts)
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := c.createEmbeddingBatch(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("failed to create embeddings for batch %d: %w", i/batchSize, err)
		}
		all = append(all, batch...)
	}
	return all, nil
}

func (c *RankingClient) createEmbeddingBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := embeddingRequest{
		Model:      c.cfg.EmbeddingModel,
		Input:      texts,
		Dimensions: c.cfg.EmbeddingDimensions,
	}

	body, err := c.postJSON(ctx, "/embeddings", req)
	if err != nil {
		return nil, err
	}

	var result embeddingResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	embeddings := make([][]float32, len(texts))
	for _, item := range result.Data {
		if item.Index >= 0 && item.Index < len(embeddings) {
			embeddings[item.Index] = item.Embedding
		}
	}
	return embeddings, nil
}

// postJSON sends an authenticated JSON POST and returns the response body
// for 200 responses.
func (c *RankingClient) postJSON(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(c.cfg.APIBase, "/") + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, truncateBody(body))
	}
	return body, nil
}

func truncateBody(body []byte) string {
	const max = 200
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max]) + "..."
}
