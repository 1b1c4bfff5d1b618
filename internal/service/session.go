package service

import (
	"sort"
	"sync"

	"rentscope/internal/model"

	"github.com/google/uuid"
)

// State is the result-reconciliation state: which result set is currently
// authoritative for display.
type State int

const (
	// StateDeterministic displays the local filter evaluator's output.
	StateDeterministic State = iota
	// StateRankedActive displays the last successful smart-search ranking.
	StateRankedActive
)

func (s State) String() string {
	if s == StateRankedActive {
		return model.ModeRanked
	}
	return model.ModeDeterministic
}

// View is a snapshot of what a session currently displays. Exactly one of
// the two result sets is authoritative, per State.
type View struct {
	State    State
	Results  []model.Property
	Ranked   []model.RankedProperty
	Insights string
}

// Session owns the reconciliation state machine for one search session.
// All mutations go through the mutex: there is no true parallelism inside a
// session, only interleaved asynchronous completions, and the generation
// counter makes sure a stale completion never overwrites a newer state.
type Session struct {
	mu         sync.Mutex
	id         string
	criteria   model.FilterCriteria
	properties []model.Property       // available collection snapshot
	results    []model.Property       // last deterministic evaluation
	ranked     []model.RankedProperty // active ranking, if any
	insights   string
	state      State
	generation uint64
	hasResults bool
}

// NewSession creates a session in the deterministic state with the given
// starting criteria.
func NewSession(id string, criteria model.FilterCriteria) *Session {
	return &Session{
		id:       id,
		criteria: criteria,
		state:    StateDeterministic,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Criteria returns the session's current filter criteria.
func (s *Session) Criteria() model.FilterCriteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.criteria
}

// ApplyFilters replaces the criteria wholesale (a field edit or a loaded
// saved search) and drops any active ranking: edits always return the
// session to deterministic results and invalidate in-flight smart searches.
func (s *Session) ApplyFilters(criteria model.FilterCriteria) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria = criteria
	s.resetToDeterministicLocked()
}

// Search refreshes the property snapshot, evaluates the current criteria
// over it and makes the deterministic set authoritative.
func (s *Session) Search(properties []model.Property) []model.Property {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties = properties
	s.results = Evaluate(s.criteria, properties)
	s.hasResults = true
	s.resetToDeterministicLocked()
	return append([]model.Property(nil), s.results...)
}

// HasResults reports whether a deterministic evaluation has run yet.
func (s *Session) HasResults() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasResults
}

// BeginSmartSearch opens a smart-search attempt. It bumps the generation so
// any older in-flight attempt resolves stale, and returns the token the
// caller must present on completion together with the candidate list the
// ranking response's indexes will refer to. The candidate order must not
// change between request and response interpretation.
func (s *Session) BeginSmartSearch() (uint64, []model.Property) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	candidates := s.results
	if !s.hasResults {
		candidates = s.properties
	}
	return s.generation, append([]model.Property(nil), candidates...)
}

// CompleteSmartSearch installs a successful ranking if the token is still
// current. A stale token means a newer query or a filter edit superseded
// this attempt; the late result is ignored. Candidates are reordered by
// descending score, ties broken by original candidate index so the order
// is reproducible. A new ranking replaces the previous one wholesale.
func (s *Session) CompleteSmartSearch(token uint64, candidates []model.Property, result *model.RankingResult) ([]model.RankedProperty, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.generation {
		return nil, false
	}

	entries := append([]model.RankingEntry(nil), result.Rankings...)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].PropertyIndex < entries[j].PropertyIndex
	})

	ranked := make([]model.RankedProperty, 0, len(entries))
	for _, e := range entries {
		if e.PropertyIndex < 0 || e.PropertyIndex >= len(candidates) {
			continue
		}
		ranked = append(ranked, model.RankedProperty{
			Property:    candidates[e.PropertyIndex],
			Score:       e.Score,
			Explanation: e.Explanation,
		})
	}

	s.ranked = ranked
	s.insights = result.SearchInsights
	s.state = StateRankedActive
	return append([]model.RankedProperty(nil), ranked...), true
}

// FailSmartSearch records a gateway failure: the session stays in (or
// returns to) the deterministic state and the query is discarded. A stale
// token is a no-op because a newer operation already owns the state.
func (s *Session) FailSmartSearch(token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.generation {
		return
	}
	s.resetToDeterministicLocked()
}

// Snapshot returns the current display state.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{State: s.state}
	if s.state == StateRankedActive {
		v.Ranked = append([]model.RankedProperty(nil), s.ranked...)
		v.Insights = s.insights
	} else {
		v.Results = append([]model.Property(nil), s.results...)
	}
	return v
}

func (s *Session) resetToDeterministicLocked() {
	s.state = StateDeterministic
	s.ranked = nil
	s.insights = ""
	s.generation++
}

// SessionManager tracks live search sessions by id.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates an empty session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for id, creating one with default basic
// criteria when id is empty or unknown.
func (m *SessionManager) GetOrCreate(id string) *Session {
	if id != "" {
		m.mu.RLock()
		sess, ok := m.sessions[id]
		m.mu.RUnlock()
		if ok {
			return sess
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "" {
		id = uuid.NewString()
	}
	if sess, ok := m.sessions[id]; ok {
		return sess
	}
	sess := NewSession(id, model.DefaultCriteria())
	m.sessions[id] = sess
	return sess
}
