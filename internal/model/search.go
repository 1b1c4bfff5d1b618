package model

// SearchRequest runs a deterministic search. Criteria, when present,
// replace the session's current criteria before evaluation.
type SearchRequest struct {
	SessionID string          `json:"session_id,omitempty"`
	Criteria  *FilterCriteria `json:"criteria,omitempty"`
}

// SmartSearchRequest runs a free-text relevance search against the
// session's current candidate set.
type SmartSearchRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Query     string `json:"query" binding:"required"`
}

// Search result modes.
const (
	ModeDeterministic = "deterministic"
	ModeRanked        = "ranked"
)

// SearchResponse is the result of a deterministic or smart search.
// Degraded is set when a smart search fell back to deterministic results;
// Notice then carries the non-fatal advisory for the user.
type SearchResponse struct {
	SessionID string           `json:"session_id"`
	SearchID  string           `json:"search_id"`
	Mode      string           `json:"mode"`
	Results   []RankedProperty `json:"results"`
	Total     int              `json:"total"`
	Insights  string           `json:"search_insights,omitempty"`
	Degraded  bool             `json:"degraded,omitempty"`
	Notice    string           `json:"notice,omitempty"`
	Took      int64            `json:"took_ms"`
}

// SaveSearchRequest creates a named saved search for the current user.
type SaveSearchRequest struct {
	Name     string         `json:"name" binding:"required"`
	Criteria FilterCriteria `json:"criteria"`
}

// FeedbackRequest records a user action against a logged search.
type FeedbackRequest struct {
	SearchID   string `json:"search_id" binding:"required"`
	PropertyID string `json:"property_id" binding:"required"`
	Action     string `json:"action" binding:"required"` // click, contact, view_details
}

// FeedbackResponse represents feedback response.
type FeedbackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// EmbeddingBatchRequest updates property embeddings in bulk. Items may
// carry a precomputed vector or raw text to embed server-side.
type EmbeddingBatchRequest struct {
	Embeddings []EmbeddingItem `json:"embeddings" binding:"required"`
}

// EmbeddingItem is a single embedding update.
type EmbeddingItem struct {
	PropertyID string    `json:"property_id" binding:"required"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Text       string    `json:"text,omitempty"`
}

// EmbeddingBatchResponse reports the outcome of a batch update.
type EmbeddingBatchResponse struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// SearchLogEntry is one row of search analytics.
type SearchLogEntry struct {
	SearchID    string         `json:"search_id" db:"search_id"`
	OwnerID     string         `json:"owner_id,omitempty" db:"owner_id"`
	Query       string         `json:"query,omitempty" db:"query"`
	Criteria    FilterCriteria `json:"criteria" db:"criteria"`
	Mode        string         `json:"mode" db:"mode"`
	ResultCount int            `json:"result_count" db:"result_count"`
	TookMs      int64          `json:"took_ms" db:"response_time_ms"`
}
