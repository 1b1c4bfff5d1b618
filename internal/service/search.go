package service

import (
	"context"
	"strings"
	"time"

	"rentscope/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PropertyStore is the read-only property collaborator. The search core
// never mutates properties.
type PropertyStore interface {
	ListAvailableProperties(ctx context.Context) ([]model.Property, error)
	GetPropertyByID(ctx context.Context, id string) (*model.Property, error)
	SimilarProperties(ctx context.Context, id string, limit int) ([]model.Property, error)
}

// AnalyticsStore records search and feedback events.
type AnalyticsStore interface {
	LogSearch(ctx context.Context, entry *model.SearchLogEntry) error
	LogFeedback(ctx context.Context, searchID, propertyID, action string) error
}

// EmbeddingStore persists property embedding vectors.
type EmbeddingStore interface {
	BatchUpdateEmbeddings(ctx context.Context, items []model.EmbeddingItem) (int, []string)
}

// Ranker is the relevance ranking gateway contract.
type Ranker interface {
	Rank(ctx context.Context, query string, candidates []model.Property) (*model.RankingResult, error)
	Enabled() bool
}

// Embedder generates embedding vectors for raw text.
type Embedder interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Hooks is the integration surface exposed upward: the surrounding UI
// layer binds these callbacks to observe the core's state transitions.
// All fields are optional.
type Hooks struct {
	OnFiltersChange      func(criteria model.FilterCriteria)
	OnSearch             func(results []model.Property)
	OnSmartSearchResults func(ranked []model.RankedProperty, insights string)
}

// PriceBounds is the configured clamp window for criteria price ranges.
type PriceBounds struct {
	Floor   float64
	Ceiling float64
}

// SearchService orchestrates filter evaluation, smart-search ranking and
// result reconciliation across sessions.
type SearchService struct {
	store      PropertyStore
	analytics  AnalyticsStore
	embedStore EmbeddingStore
	ranker     Ranker
	embedder   Embedder
	sessions   *SessionManager
	bounds     PriceBounds
	hooks      Hooks
	log        *logrus.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(
	store PropertyStore,
	analytics AnalyticsStore,
	embedStore EmbeddingStore,
	ranker Ranker,
	embedder Embedder,
	sessions *SessionManager,
	bounds PriceBounds,
	log *logrus.Logger,
) *SearchService {
	return &SearchService{
		store:      store,
		analytics:  analytics,
		embedStore: embedStore,
		ranker:     ranker,
		embedder:   embedder,
		sessions:   sessions,
		bounds:     bounds,
		log:        log,
	}
}

// SetHooks installs the upward integration callbacks.
func (s *SearchService) SetHooks(h Hooks) {
	s.hooks = h
}

// Search runs a deterministic search. When criteria are supplied they
// replace the session's filter state first, which also discards any active
// ranking and invalidates in-flight smart searches.
func (s *SearchService) Search(ctx context.Context, sessionID string, criteria *model.FilterCriteria) (*model.SearchResponse, error) {
	start := time.Now()
	sess := s.sessions.GetOrCreate(sessionID)

	if criteria != nil {
		clamped := criteria.ClampPrices(s.bounds.Floor, s.bounds.Ceiling)
		sess.ApplyFilters(clamped)
		if s.hooks.OnFiltersChange != nil {
			s.hooks.OnFiltersChange(clamped)
		}
	}

	properties, err := s.store.ListAvailableProperties(ctx)
	if err != nil {
		return nil, err
	}

	results := sess.Search(properties)
	if s.hooks.OnSearch != nil {
		s.hooks.OnSearch(results)
	}

	took := time.Since(start).Milliseconds()
	searchID := uuid.NewString()
	s.logSearch(&model.SearchLogEntry{
		SearchID:    searchID,
		OwnerID:     userIDOrEmpty(ctx),
		Criteria:    sess.Criteria(),
		Mode:        model.ModeDeterministic,
		ResultCount: len(results),
		TookMs:      took,
	})

	return &model.SearchResponse{
		SessionID: sess.ID(),
		SearchID:  searchID,
		Mode:      model.ModeDeterministic,
		Results:   stripAnnotations(results),
		Total:     len(results),
		Took:      took,
	}, nil
}

// SmartSearch runs a free-text relevance search over the session's current
// candidate set. On gateway failure the session stays deterministic and the
// response carries a non-fatal advisory instead of an error.
func (s *SearchService) SmartSearch(ctx context.Context, sessionID, query string) (*model.SearchResponse, error) {
	start := time.Now()
	sess := s.sessions.GetOrCreate(sessionID)

	// An empty query is a no-op: no network call, no state transition.
	if strings.TrimSpace(query) == "" {
		return s.currentView(sess, start), nil
	}

	// A smart search needs a candidate set; run the deterministic
	// evaluation first if this session has never searched.
	if !sess.HasResults() {
		properties, err := s.store.ListAvailableProperties(ctx)
		if err != nil {
			return nil, err
		}
		sess.Search(properties)
	}

	token, candidates := sess.BeginSmartSearch()
	if len(candidates) == 0 {
		return s.currentView(sess, start), nil
	}

	result, err := s.ranker.Rank(ctx, query, candidates)
	if err != nil {
		sess.FailSmartSearch(token)
		s.log.WithError(err).Warn("Smart search degraded to deterministic results")
		resp := s.currentView(sess, start)
		resp.Degraded = true
		resp.Notice = "Smart search is unavailable right now; showing filter results instead."
		return resp, nil
	}

	ranked, ok := sess.CompleteSmartSearch(token, candidates, result)
	if !ok {
		// Superseded by a newer query or a filter edit; the late result
		// is discarded and the current state stands.
		return s.currentView(sess, start), nil
	}

	if s.hooks.OnSmartSearchResults != nil {
		s.hooks.OnSmartSearchResults(ranked, result.SearchInsights)
	}

	took := time.Since(start).Milliseconds()
	searchID := uuid.NewString()
	s.logSearch(&model.SearchLogEntry{
		SearchID:    searchID,
		OwnerID:     userIDOrEmpty(ctx),
		Query:       query,
		Criteria:    sess.Criteria(),
		Mode:        model.ModeRanked,
		ResultCount: len(ranked),
		TookMs:      took,
	})

	return &model.SearchResponse{
		SessionID: sess.ID(),
		SearchID:  searchID,
		Mode:      model.ModeRanked,
		Results:   ranked,
		Total:     len(ranked),
		Insights:  result.SearchInsights,
		Took:      took,
	}, nil
}

// GetProperty retrieves a single property by id.
func (s *SearchService) GetProperty(ctx context.Context, id string) (*model.Property, error) {
	return s.store.GetPropertyByID(ctx, id)
}

// SimilarProperties returns the nearest available properties by embedding
// distance.
func (s *SearchService) SimilarProperties(ctx context.Context, id string, limit int) ([]model.Property, error) {
	return s.store.SimilarProperties(ctx, id, limit)
}

// LogFeedback records a user action against a logged search.
func (s *SearchService) LogFeedback(ctx context.Context, searchID, propertyID, action string) error {
	return s.analytics.LogFeedback(ctx, searchID, propertyID, action)
}

// UpdateEmbeddings persists embedding vectors for properties. Items that
// carry raw text instead of a vector are embedded through the gateway
// first; those fail individually when the gateway is unavailable.
func (s *SearchService) UpdateEmbeddings(ctx context.Context, items []model.EmbeddingItem) (int, []string) {
	ready := make([]model.EmbeddingItem, 0, len(items))
	var errors []string

	var pendingTexts []string
	var pendingItems []model.EmbeddingItem
	for _, item := range items {
		switch {
		case len(item.Embedding) > 0:
			ready = append(ready, item)
		case item.Text != "":
			pendingTexts = append(pendingTexts, item.Text)
			pendingItems = append(pendingItems, item)
		default:
			errors = append(errors, "property_id "+item.PropertyID+": neither embedding nor text provided")
		}
	}

	if len(pendingTexts) > 0 {
		vectors, err := s.embedder.CreateEmbeddings(ctx, pendingTexts)
		if err != nil {
			for _, item := range pendingItems {
				errors = append(errors, "property_id "+item.PropertyID+": "+err.Error())
			}
		} else {
			for i, item := range pendingItems {
				item.Embedding = vectors[i]
				ready = append(ready, item)
			}
		}
	}

	success, storeErrors := s.embedStore.BatchUpdateEmbeddings(ctx, ready)
	errors = append(errors, storeErrors...)
	return success, errors
}

// currentView renders the session's authoritative display state.
func (s *SearchService) currentView(sess *Session, start time.Time) *model.SearchResponse {
	view := sess.Snapshot()
	resp := &model.SearchResponse{
		SessionID: sess.ID(),
		Mode:      view.State.String(),
		Took:      time.Since(start).Milliseconds(),
	}
	if view.State == StateRankedActive {
		resp.Results = view.Ranked
		resp.Insights = view.Insights
	} else {
		resp.Results = stripAnnotations(view.Results)
	}
	resp.Total = len(resp.Results)
	return resp
}

// logSearch records analytics without blocking the request path.
func (s *SearchService) logSearch(entry *model.SearchLogEntry) {
	go func() {
		logCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.analytics.LogSearch(logCtx, entry); err != nil {
			s.log.WithError(err).Warn("Failed to log search")
		}
	}()
}

// stripAnnotations wraps deterministic results without ranking metadata.
func stripAnnotations(properties []model.Property) []model.RankedProperty {
	out := make([]model.RankedProperty, len(properties))
	for i, p := range properties {
		out[i] = model.RankedProperty{Property: p}
	}
	return out
}

func userIDOrEmpty(ctx context.Context) string {
	id, _ := ContextIdentity{}.CurrentUserID(ctx)
	return id
}
