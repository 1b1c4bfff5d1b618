package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rentscope/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SavedSearchStore is the persistence contract for saved searches.
type SavedSearchStore interface {
	InsertSavedSearch(ctx context.Context, s *model.SavedSearch) error
	ListSavedSearches(ctx context.Context, ownerID string) ([]model.SavedSearch, error)
	DeleteSavedSearch(ctx context.Context, id string) error
}

// SavedSearchService persists named criteria snapshots scoped to the
// current user. Saves are append-only; duplicate names are allowed.
type SavedSearchService struct {
	store    SavedSearchStore
	identity Identity
	log      *logrus.Logger
}

// NewSavedSearchService creates a saved-search service.
func NewSavedSearchService(store SavedSearchStore, identity Identity, log *logrus.Logger) *SavedSearchService {
	return &SavedSearchService{
		store:    store,
		identity: identity,
		log:      log,
	}
}

// Save appends a new saved search. The name must be non-empty after
// trimming; there is no merge or update-by-name.
func (s *SavedSearchService) Save(ctx context.Context, name string, criteria model.FilterCriteria) (*model.SavedSearch, error) {
	ownerID, ok := s.identity.CurrentUserID(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: a signed-in user is required to save a search", model.ErrValidation)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: saved search name must not be empty", model.ErrValidation)
	}

	saved := &model.SavedSearch{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		Criteria:  criteria,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.InsertSavedSearch(ctx, saved); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"owner_id": ownerID, "name": name}).Info("Saved search created")
	return saved, nil
}

// List returns the current user's saved searches, newest first.
func (s *SavedSearchService) List(ctx context.Context) ([]model.SavedSearch, error) {
	ownerID, ok := s.identity.CurrentUserID(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: a signed-in user is required to list saved searches", model.ErrValidation)
	}
	return s.store.ListSavedSearches(ctx, ownerID)
}

// Load returns the stored criteria unmodified; the caller applies it to
// the session's filter state.
func (s *SavedSearchService) Load(saved model.SavedSearch) model.FilterCriteria {
	return saved.Criteria
}

// Delete removes a saved search unconditionally for any id the caller can
// see; an unknown id yields model.ErrNotFound.
func (s *SavedSearchService) Delete(ctx context.Context, id string) error {
	if _, ok := s.identity.CurrentUserID(ctx); !ok {
		return fmt.Errorf("%w: a signed-in user is required to delete a saved search", model.ErrValidation)
	}
	return s.store.DeleteSavedSearch(ctx, id)
}
