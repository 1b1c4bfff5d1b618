package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"rentscope/internal/config"
	"rentscope/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rankingCandidates() []model.Property {
	return []model.Property{
		{
			ID:           "p1",
			Title:        strPtr("Downtown apartment"),
			Location:     strPtr("Downtown Seattle"),
			Price:        floatPtr(1800),
			PropertyType: strPtr("apartment"),
			Bedrooms:     intPtr(2),
			Bathrooms:    floatPtr(1),
			Description:  strPtr("Bright two bedroom near transit"),
			Amenities:    model.JSONArray{"Gym"},
		},
		{
			ID:           "p2",
			Title:        strPtr("Suburban house"),
			Location:     strPtr("Suburbs"),
			Price:        floatPtr(2200),
			PropertyType: strPtr("house"),
			Bedrooms:     intPtr(3),
		},
	}
}

func testRankingClient(serverURL string) *RankingClient {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewRankingClient(&config.RankingConfig{
		APIKey:    "test-key",
		APIBase:   serverURL,
		ChatModel: "test-model",
		Timeout:   5,
		Enabled:   true,
	}, log)
}

func chatReply(content string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []map[string]interface{}{
			{"index": 0, "message": map[string]string{"role": "assistant", "content": content}},
		},
	}
}

func TestRank_Success(t *testing.T) {
	var gotAuth string
	var gotBody chatCompletionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(chatReply(
			`{"rankings":[{"propertyIndex":0,"score":92,"explanation":"downtown, in budget"},` +
				`{"propertyIndex":1,"score":30,"explanation":"wrong area"}],` +
				`"searchInsights":"One strong match."}`))
	}))
	defer server.Close()

	client := testRankingClient(server.URL)
	result, err := client.Rank(context.Background(), "modern downtown apartment", rankingCandidates())
	require.NoError(t, err)

	require.Len(t, result.Rankings, 2)
	assert.Equal(t, 0, result.Rankings[0].PropertyIndex)
	assert.Equal(t, float64(92), result.Rankings[0].Score)
	assert.Equal(t, "One strong match.", result.SearchInsights)

	assert.Equal(t, "Bearer test-key", gotAuth)
	require.Len(t, gotBody.Messages, 2)
	assert.Equal(t, "system", gotBody.Messages[0].Role)
	assert.Contains(t, gotBody.Messages[1].Content, "modern downtown apartment")
	assert.Contains(t, gotBody.Messages[1].Content, `"property_type":"apartment"`)
}

func TestRank_MarkdownFencedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatReply(
			"Here you go:\n```json\n{\"rankings\":[{\"propertyIndex\":1,\"score\":55,\"explanation\":\"ok\"}],\"searchInsights\":\"meh\"}\n```"))
	}))
	defer server.Close()

	client := testRankingClient(server.URL)
	result, err := client.Rank(context.Background(), "house with a yard", rankingCandidates())
	require.NoError(t, err)
	require.Len(t, result.Rankings, 1)
	assert.Equal(t, 1, result.Rankings[0].PropertyIndex)
}

func TestRank_EmptyQueryOrCandidatesSkipsNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unexpected network call")
	}))
	defer server.Close()

	client := testRankingClient(server.URL)

	result, err := client.Rank(context.Background(), "   ", rankingCandidates())
	require.NoError(t, err)
	assert.Empty(t, result.Rankings)

	result, err = client.Rank(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Empty(t, result.Rankings)
}

func TestRank_ServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusBadGateway)
	}))
	defer server.Close()

	client := testRankingClient(server.URL)
	_, err := client.Rank(context.Background(), "anything", rankingCandidates())
	assert.True(t, errors.Is(err, model.ErrRankingUnavailable))
}

func TestRank_MalformedPayloadIsUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not JSON at all", "I could not find any matches, sorry!"},
		{"missing rankings field", `{"searchInsights":"no rankings here"}`},
		{"index out of range", `{"rankings":[{"propertyIndex":5,"score":50,"explanation":"x"}],"searchInsights":""}`},
		{"negative index", `{"rankings":[{"propertyIndex":-1,"score":50,"explanation":"x"}],"searchInsights":""}`},
		{"score above range", `{"rankings":[{"propertyIndex":0,"score":150,"explanation":"x"}],"searchInsights":""}`},
		{"negative score", `{"rankings":[{"propertyIndex":0,"score":-5,"explanation":"x"}],"searchInsights":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(chatReply(tt.content))
			}))
			defer server.Close()

			client := testRankingClient(server.URL)
			_, err := client.Rank(context.Background(), "anything", rankingCandidates())
			assert.True(t, errors.Is(err, model.ErrRankingUnavailable), "want ErrRankingUnavailable, got %v", err)
		})
	}
}

func TestRank_AllLowScoresIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatReply(
			`{"rankings":[{"propertyIndex":0,"score":5,"explanation":"poor fit"},` +
				`{"propertyIndex":1,"score":2,"explanation":"poor fit"}],` +
				`"searchInsights":"Nothing matches this query well."}`))
	}))
	defer server.Close()

	client := testRankingClient(server.URL)
	result, err := client.Rank(context.Background(), "castle with a moat", rankingCandidates())
	require.NoError(t, err)
	assert.Len(t, result.Rankings, 2)
}

func TestRank_DisabledClient(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	client := NewRankingClient(&config.RankingConfig{Timeout: 5}, log)

	_, err := client.Rank(context.Background(), "anything", rankingCandidates())
	assert.True(t, errors.Is(err, model.ErrRankingUnavailable))
}

func TestCreateEmbeddings_Batches(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := embeddingResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: []float32{float32(i)}, Index: i})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	log := logrus.New()
	log.SetOutput(io.Discard)
	client := NewRankingClient(&config.RankingConfig{
		APIKey:         "test-key",
		APIBase:        server.URL,
		EmbeddingModel: "test-embed",
		BatchSize:      2,
		Timeout:        5,
		Enabled:        true,
	}, log)

	embeddings, err := client.CreateEmbeddings(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, embeddings, 3)
	assert.Equal(t, 2, calls)
}
