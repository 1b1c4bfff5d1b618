package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pgvector/pgvector-go"
)

// Property is a rental listing snapshot. It is read-only from the search
// core's perspective; optional columns map to pointer fields so a missing
// value is distinguishable from a zero one.
type Property struct {
	ID            string          `json:"id" db:"id"`
	Title         *string         `json:"title,omitempty" db:"title"`
	Location      *string         `json:"location,omitempty" db:"location"`
	City          *string         `json:"city,omitempty" db:"city"`
	State         *string         `json:"state,omitempty" db:"state"`
	StreetAddress *string         `json:"street_address,omitempty" db:"street_address"`
	Description   *string         `json:"description,omitempty" db:"description"`
	Price         *float64        `json:"price,omitempty" db:"price"`
	PropertyType  *string         `json:"property_type,omitempty" db:"property_type"`
	Bedrooms      *int            `json:"bedrooms,omitempty" db:"bedrooms"`
	Bathrooms     *float64        `json:"bathrooms,omitempty" db:"bathrooms"`
	Amenities     JSONArray       `json:"amenities,omitempty" db:"amenities"`
	IsFurnished   bool            `json:"is_furnished" db:"is_furnished"`
	IsPetFriendly bool            `json:"is_pet_friendly" db:"is_pet_friendly"`
	IsAvailable   bool            `json:"is_available" db:"is_available"`
	Embedding     pgvector.Vector `json:"-" db:"embedding"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// RankedProperty is a property annotated with relevance metadata from a
// smart search. Annotations exist only while ranked results are active.
type RankedProperty struct {
	Property
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation,omitempty"`
}

// RankingEntry scores one candidate by its position in the candidate list
// that was sent to the ranking service.
type RankingEntry struct {
	PropertyIndex int     `json:"propertyIndex"`
	Score         float64 `json:"score"`
	Explanation   string  `json:"explanation"`
}

// RankingResult is the transient per-query output of the ranking service.
// It is never persisted; it lives until superseded or cleared.
type RankingResult struct {
	Rankings       []RankingEntry `json:"rankings"`
	SearchInsights string         `json:"searchInsights"`
}

// SavedSearch is a named, persisted criteria snapshot. Records are append
// only: a new save is a new record, never an update in place.
type SavedSearch struct {
	ID        string         `json:"id" db:"id"`
	OwnerID   string         `json:"owner_id" db:"owner_id"`
	Name      string         `json:"name" db:"name"`
	Criteria  FilterCriteria `json:"criteria" db:"criteria"`
	IsActive  bool           `json:"is_active" db:"is_active"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// JSONArray represents a JSON array column.
type JSONArray []string

// Value implements driver.Valuer interface.
func (j JSONArray) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner interface.
func (j *JSONArray) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return json.Unmarshal([]byte(value.(string)), j)
	}
	return json.Unmarshal(bytes, j)
}
