package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"rentscope/internal/model"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// propertyColumns is the shared select list for property reads. The
// embedding column is deliberately excluded; it is only touched by the
// embedding update and similarity paths.
const propertyColumns = `
	id, title, location, city, state, street_address, description,
	price, property_type, bedrooms, bathrooms, amenities,
	is_furnished, is_pet_friendly, is_available, created_at, updated_at`

// PostgresRepository handles database operations
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(dsn string, maxConn, maxIdleConn int) (*PostgresRepository, error) {
	// Disable prepared statement caching to avoid "unnamed prepared statement does not exist" errors
	if !strings.Contains(dsn, "?") {
		dsn += "?prefer_simple_protocol=true"
	} else {
		dsn += "&prefer_simple_protocol=true"
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// ListAvailableProperties returns every renter-visible property. The
// availability filter lives here so the evaluator can assume pre-filtered
// input; ordering is stable (newest first) so evaluation output order is
// reproducible.
func (r *PostgresRepository) ListAvailableProperties(ctx context.Context) ([]model.Property, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM properties
		WHERE is_available = true
		ORDER BY created_at DESC, id
	`, propertyColumns)

	var properties []model.Property
	if err := r.db.SelectContext(ctx, &properties, query); err != nil {
		return nil, fmt.Errorf("failed to fetch properties: %w", err)
	}
	return properties, nil
}

// GetPropertyByID retrieves a single property; (nil, nil) when absent.
func (r *PostgresRepository) GetPropertyByID(ctx context.Context, id string) (*model.Property, error) {
	query := fmt.Sprintf(`SELECT %s FROM properties WHERE id = $1`, propertyColumns)

	var property model.Property
	err := r.db.GetContext(ctx, &property, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	return &property, nil
}

// SimilarProperties returns the nearest available properties to the given
// one by embedding cosine distance.
func (r *PostgresRepository) SimilarProperties(ctx context.Context, id string, limit int) ([]model.Property, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM properties
		WHERE id <> $1
		  AND is_available = true
		  AND embedding IS NOT NULL
		ORDER BY embedding <=> (SELECT embedding FROM properties WHERE id = $1)
		LIMIT $2
	`, propertyColumns)

	var properties []model.Property
	if err := r.db.SelectContext(ctx, &properties, query, id, limit); err != nil {
		return nil, fmt.Errorf("failed to fetch similar properties: %w", err)
	}
	return properties, nil
}

// InsertSavedSearch appends a saved-search record. Duplicate names per
// owner are allowed: a save never merges with or updates an earlier one.
func (r *PostgresRepository) InsertSavedSearch(ctx context.Context, s *model.SavedSearch) error {
	query := `
		INSERT INTO saved_searches (id, owner_id, name, criteria, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, s.ID, s.OwnerID, s.Name, s.Criteria, s.IsActive, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert saved search: %w", err)
	}
	return nil
}

// ListSavedSearches returns an owner's saved searches, newest first.
func (r *PostgresRepository) ListSavedSearches(ctx context.Context, ownerID string) ([]model.SavedSearch, error) {
	query := `
		SELECT id, owner_id, name, criteria, is_active, created_at
		FROM saved_searches
		WHERE owner_id = $1
		ORDER BY created_at DESC, id
	`
	var searches []model.SavedSearch
	if err := r.db.SelectContext(ctx, &searches, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list saved searches: %w", err)
	}
	return searches, nil
}

// DeleteSavedSearch removes a saved search; model.ErrNotFound when the id
// does not exist.
func (r *PostgresRepository) DeleteSavedSearch(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM saved_searches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete saved search: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: saved search %s", model.ErrNotFound, id)
	}
	return nil
}

// LogSearch records one search analytics row.
func (r *PostgresRepository) LogSearch(ctx context.Context, entry *model.SearchLogEntry) error {
	query := `
		INSERT INTO search_logs (search_id, owner_id, query, criteria, mode, result_count, response_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.SearchID, entry.OwnerID, entry.Query, entry.Criteria,
		entry.Mode, entry.ResultCount, entry.TookMs,
	)
	if err != nil {
		return fmt.Errorf("failed to log search: %w", err)
	}
	return nil
}

// LogFeedback attaches a user action to a logged search.
func (r *PostgresRepository) LogFeedback(ctx context.Context, searchID, propertyID, action string) error {
	query := `
		UPDATE search_logs
		SET clicked_property_id = $2, action = $3
		WHERE search_id = $1
	`
	_, err := r.db.ExecContext(ctx, query, searchID, propertyID, action)
	if err != nil {
		return fmt.Errorf("failed to log feedback: %w", err)
	}
	return nil
}

// BatchUpdateEmbeddings updates embeddings for multiple properties inside
// one transaction; individual failures are collected, not fatal.
func (r *PostgresRepository) BatchUpdateEmbeddings(ctx context.Context, items []model.EmbeddingItem) (int, []string) {
	success := 0
	var errors []string

	if len(items) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		errors = append(errors, fmt.Sprintf("failed to start transaction: %v", err))
		return success, errors
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `UPDATE properties SET embedding = $1, updated_at = NOW() WHERE id = $2`)
	if err != nil {
		errors = append(errors, fmt.Sprintf("failed to prepare statement: %v", err))
		return success, errors
	}
	defer stmt.Close()

	for _, item := range items {
		vec := pgvector.NewVector(item.Embedding)
		if _, err := stmt.ExecContext(ctx, vec, item.PropertyID); err != nil {
			errors = append(errors, fmt.Sprintf("property_id %s: %v", item.PropertyID, err))
			continue
		}
		success++
	}

	if err := tx.Commit(); err != nil {
		errors = append(errors, fmt.Sprintf("failed to commit transaction: %v", err))
		return 0, errors
	}

	return success, errors
}
