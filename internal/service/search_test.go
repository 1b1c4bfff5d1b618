package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"rentscope/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePropertyStore serves a fixed property collection.
type fakePropertyStore struct {
	properties []model.Property
	listErr    error
}

func (f *fakePropertyStore) ListAvailableProperties(context.Context) ([]model.Property, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.properties, nil
}

func (f *fakePropertyStore) GetPropertyByID(_ context.Context, id string) (*model.Property, error) {
	for i := range f.properties {
		if f.properties[i].ID == id {
			return &f.properties[i], nil
		}
	}
	return nil, nil
}

func (f *fakePropertyStore) SimilarProperties(_ context.Context, id string, limit int) ([]model.Property, error) {
	var out []model.Property
	for _, p := range f.properties {
		if p.ID != id {
			out = append(out, p)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// fakeAnalytics records log calls for assertions.
type fakeAnalytics struct {
	mu       sync.Mutex
	searches []model.SearchLogEntry
	feedback []string
}

func (f *fakeAnalytics) LogSearch(_ context.Context, entry *model.SearchLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, *entry)
	return nil
}

func (f *fakeAnalytics) LogFeedback(_ context.Context, searchID, propertyID, action string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedback = append(f.feedback, fmt.Sprintf("%s/%s/%s", searchID, propertyID, action))
	return nil
}

func (f *fakeAnalytics) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searches)
}

// fakeEmbeddingStore accepts every item.
type fakeEmbeddingStore struct {
	stored []model.EmbeddingItem
}

func (f *fakeEmbeddingStore) BatchUpdateEmbeddings(_ context.Context, items []model.EmbeddingItem) (int, []string) {
	f.stored = append(f.stored, items...)
	return len(items), nil
}

// fakeRanker returns a scripted result or error.
type fakeRanker struct {
	result *model.RankingResult
	err    error
	calls  int
}

func (f *fakeRanker) Rank(_ context.Context, query string, candidates []model.Property) (*model.RankingResult, error) {
	f.calls++
	if query == "" || len(candidates) == 0 {
		return &model.RankingResult{Rankings: []model.RankingEntry{}}, nil
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeRanker) Enabled() bool { return true }

// fakeEmbedder returns one fixed-size vector per input.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) CreateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func searchFixture() []model.Property {
	return []model.Property{
		{
			ID:           "p1",
			Title:        strPtr("Downtown apartment"),
			Location:     strPtr("Downtown Seattle"),
			Price:        floatPtr(1800),
			PropertyType: strPtr("apartment"),
			Bedrooms:     intPtr(2),
			IsAvailable:  true,
		},
		{
			ID:           "p2",
			Title:        strPtr("Suburban house"),
			Location:     strPtr("Suburbs"),
			Price:        floatPtr(2200),
			PropertyType: strPtr("house"),
			Bedrooms:     intPtr(3),
			IsAvailable:  true,
		},
	}
}

func newTestSearchService(store *fakePropertyStore, ranker Ranker) (*SearchService, *fakeAnalytics, *fakeEmbeddingStore) {
	analytics := &fakeAnalytics{}
	embedStore := &fakeEmbeddingStore{}
	svc := NewSearchService(
		store,
		analytics,
		embedStore,
		ranker,
		&fakeEmbedder{},
		NewSessionManager(),
		PriceBounds{Floor: 0, Ceiling: 10000},
		quietLogger(),
	)
	return svc, analytics, embedStore
}

func waitForSearchLogs(t *testing.T, analytics *fakeAnalytics, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if analytics.searchCount() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d logged searches, got %d", want, analytics.searchCount())
}

func TestSearch_Deterministic(t *testing.T) {
	store := &fakePropertyStore{properties: searchFixture()}
	svc, analytics, _ := newTestSearchService(store, &fakeRanker{})

	criteria := model.DefaultCriteria().WithLocation("downtown")
	resp, err := svc.Search(context.Background(), "", &criteria)
	require.NoError(t, err)

	assert.Equal(t, model.ModeDeterministic, resp.Mode)
	assert.NotEmpty(t, resp.SessionID)
	assert.NotEmpty(t, resp.SearchID)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "p1", resp.Results[0].ID)
	assert.Zero(t, resp.Results[0].Score)
	assert.Equal(t, 1, resp.Total)

	waitForSearchLogs(t, analytics, 1)
	assert.Equal(t, resp.SearchID, analytics.searches[0].SearchID)
	assert.Equal(t, model.ModeDeterministic, analytics.searches[0].Mode)
}

func TestSearch_SavedCriteriaReproduceResults(t *testing.T) {
	store := &fakePropertyStore{properties: searchFixture()}
	svc, _, _ := newTestSearchService(store, &fakeRanker{})

	criteria := model.DefaultCriteria().WithLocation("downtown").WithBedrooms("2")
	first, err := svc.Search(context.Background(), "sess-a", &criteria)
	require.NoError(t, err)

	// Re-applying the same stored criteria in a fresh session yields the
	// same result set; nothing hidden leaks through a saved search.
	second, err := svc.Search(context.Background(), "sess-b", &criteria)
	require.NoError(t, err)

	require.Equal(t, len(first.Results), len(second.Results))
	for i := range first.Results {
		assert.Equal(t, first.Results[i].ID, second.Results[i].ID)
	}
}

func TestSearch_ClampsPriceRange(t *testing.T) {
	store := &fakePropertyStore{properties: searchFixture()}
	svc, _, _ := newTestSearchService(store, &fakeRanker{})

	criteria := model.DefaultCriteria().WithPriceRange(1, 99999)
	resp, err := svc.Search(context.Background(), "sess-clamp", &criteria)
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
}

func TestSmartSearch_RanksResults(t *testing.T) {
	store := &fakePropertyStore{properties: searchFixture()}
	ranker := &fakeRanker{result: &model.RankingResult{
		Rankings: []model.RankingEntry{
			{PropertyIndex: 1, Score: 30, Explanation: "wrong area"},
			{PropertyIndex: 0, Score: 92, Explanation: "downtown, in budget"},
		},
		SearchInsights: "One strong downtown match.",
	}}
	svc, analytics, _ := newTestSearchService(store, ranker)

	resp, err := svc.SmartSearch(context.Background(), "sess-1", "modern downtown apartment")
	require.NoError(t, err)

	assert.Equal(t, model.ModeRanked, resp.Mode)
	assert.False(t, resp.Degraded)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "p1", resp.Results[0].ID)
	assert.Equal(t, float64(92), resp.Results[0].Score)
	assert.Equal(t, "downtown, in budget", resp.Results[0].Explanation)
	assert.Equal(t, "p2", resp.Results[1].ID)
	assert.Equal(t, "One strong downtown match.", resp.Insights)

	waitForSearchLogs(t, analytics, 1)
	assert.Equal(t, model.ModeRanked, analytics.searches[0].Mode)
	assert.Equal(t, "modern downtown apartment", analytics.searches[0].Query)
}

func TestSmartSearch_RunsLazyDeterministicSearchFirst(t *testing.T) {
	store := &fakePropertyStore{properties: searchFixture()}
	ranker := &fakeRanker{result: &model.RankingResult{
		Rankings: []model.RankingEntry{{PropertyIndex: 0, Score: 80}},
	}}
	svc, _, _ := newTestSearchService(store, ranker)

	// No prior Search call on this session; candidates come from a fresh
	// evaluation of the default criteria.
	resp, err := svc.SmartSearch(context.Background(), "fresh", "anything nice")
	require.NoError(t, err)
	assert.Equal(t, model.ModeRanked, resp.Mode)
	require.Len(t, resp.Results, 1)
}

func TestSmartSearch_EmptyQueryIsNoOp(t *testing.T) {
	store := &fakePropertyStore{properties: searchFixture()}
	ranker := &fakeRanker{}
	svc, _, _ := newTestSearchService(store, ranker)

	criteria := model.DefaultCriteria()
	_, err := svc.Search(context.Background(), "sess-1", &criteria)
	require.NoError(t, err)

	resp, err := svc.SmartSearch(context.Background(), "sess-1", "   ")
	require.NoError(t, err)
	assert.Equal(t, model.ModeDeterministic, resp.Mode)
	assert.Len(t, resp.Results, 2)
	assert.Zero(t, ranker.calls)
}

func TestSmartSearch_GatewayFailureDegrades(t *testing.T) {
	store := &fakePropertyStore{properties: searchFixture()}
	ranker := &fakeRanker{err: fmt.Errorf("%w: timeout", model.ErrRankingUnavailable)}
	svc, _, _ := newTestSearchService(store, ranker)

	criteria := model.DefaultCriteria()
	_, err := svc.Search(context.Background(), "sess-1", &criteria)
	require.NoError(t, err)

	resp, err := svc.SmartSearch(context.Background(), "sess-1", "downtown with a view")
	require.NoError(t, err)

	// The failure is absorbed: deterministic results, a notice, no error.
	assert.Equal(t, model.ModeDeterministic, resp.Mode)
	assert.True(t, resp.Degraded)
	assert.NotEmpty(t, resp.Notice)
	assert.Len(t, resp.Results, 2)
	for _, r := range resp.Results {
		assert.Zero(t, r.Score)
		assert.Empty(t, r.Explanation)
	}
}

func TestSmartSearch_FilterEditAfterRankingResets(t *testing.T) {
	store := &fakePropertyStore{properties: searchFixture()}
	ranker := &fakeRanker{result: &model.RankingResult{
		Rankings: []model.RankingEntry{{PropertyIndex: 0, Score: 88, Explanation: "good"}},
	}}
	svc, _, _ := newTestSearchService(store, ranker)

	criteria := model.DefaultCriteria()
	_, err := svc.Search(context.Background(), "sess-1", &criteria)
	require.NoError(t, err)

	resp, err := svc.SmartSearch(context.Background(), "sess-1", "downtown")
	require.NoError(t, err)
	require.Equal(t, model.ModeRanked, resp.Mode)

	// Editing a filter returns the session to deterministic mode and the
	// new result set carries no leftover annotations.
	edited := criteria.WithLocation("suburbs")
	resp, err = svc.Search(context.Background(), "sess-1", &edited)
	require.NoError(t, err)
	assert.Equal(t, model.ModeDeterministic, resp.Mode)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "p2", resp.Results[0].ID)
	assert.Zero(t, resp.Results[0].Score)
	assert.Empty(t, resp.Results[0].Explanation)
}

func TestSmartSearch_ListErrorPropagates(t *testing.T) {
	store := &fakePropertyStore{listErr: errors.New("db down")}
	svc, _, _ := newTestSearchService(store, &fakeRanker{})

	_, err := svc.SmartSearch(context.Background(), "sess-1", "anything")
	assert.Error(t, err)
}

func TestSearch_Hooks(t *testing.T) {
	store := &fakePropertyStore{properties: searchFixture()}
	ranker := &fakeRanker{result: &model.RankingResult{
		Rankings:       []model.RankingEntry{{PropertyIndex: 0, Score: 70}},
		SearchInsights: "insights",
	}}
	svc, _, _ := newTestSearchService(store, ranker)

	var gotCriteria *model.FilterCriteria
	var gotResults []model.Property
	var gotRanked []model.RankedProperty
	svc.SetHooks(Hooks{
		OnFiltersChange:      func(c model.FilterCriteria) { gotCriteria = &c },
		OnSearch:             func(r []model.Property) { gotResults = r },
		OnSmartSearchResults: func(r []model.RankedProperty, _ string) { gotRanked = r },
	})

	criteria := model.DefaultCriteria().WithLocation("downtown")
	_, err := svc.Search(context.Background(), "sess-1", &criteria)
	require.NoError(t, err)
	require.NotNil(t, gotCriteria)
	assert.Equal(t, "downtown", gotCriteria.Location)
	assert.Len(t, gotResults, 1)

	_, err = svc.SmartSearch(context.Background(), "sess-1", "nice place")
	require.NoError(t, err)
	assert.Len(t, gotRanked, 1)
}

func TestLogFeedback(t *testing.T) {
	store := &fakePropertyStore{properties: searchFixture()}
	svc, analytics, _ := newTestSearchService(store, &fakeRanker{})

	require.NoError(t, svc.LogFeedback(context.Background(), "search-1", "p1", "click"))
	assert.Equal(t, []string{"search-1/p1/click"}, analytics.feedback)
}

func TestUpdateEmbeddings(t *testing.T) {
	store := &fakePropertyStore{properties: searchFixture()}
	svc, _, embedStore := newTestSearchService(store, &fakeRanker{})

	items := []model.EmbeddingItem{
		{PropertyID: "p1", Embedding: []float32{0.1, 0.2}},
		{PropertyID: "p2", Text: "suburban house with a yard"},
		{PropertyID: "p3"},
	}

	success, errs := svc.UpdateEmbeddings(context.Background(), items)
	assert.Equal(t, 2, success)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "p3")
	assert.Len(t, embedStore.stored, 2)
}

func TestUpdateEmbeddings_EmbedderFailure(t *testing.T) {
	store := &fakePropertyStore{properties: searchFixture()}
	analytics := &fakeAnalytics{}
	embedStore := &fakeEmbeddingStore{}
	svc := NewSearchService(
		store,
		analytics,
		embedStore,
		&fakeRanker{},
		&fakeEmbedder{err: errors.New("gateway down")},
		NewSessionManager(),
		PriceBounds{Ceiling: 10000},
		quietLogger(),
	)

	items := []model.EmbeddingItem{
		{PropertyID: "p1", Embedding: []float32{0.5}},
		{PropertyID: "p2", Text: "needs embedding"},
	}

	success, errs := svc.UpdateEmbeddings(context.Background(), items)
	assert.Equal(t, 1, success)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "p2")
}
