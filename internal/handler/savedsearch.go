package handler

import (
	"errors"
	"net/http"

	"rentscope/internal/model"
	"rentscope/internal/service"

	"github.com/gin-gonic/gin"
)

// SavedSearchHandler handles saved-search HTTP requests
type SavedSearchHandler struct {
	savedSearches *service.SavedSearchService
}

// NewSavedSearchHandler creates a new saved-search handler
func NewSavedSearchHandler(savedSearches *service.SavedSearchService) *SavedSearchHandler {
	return &SavedSearchHandler{savedSearches: savedSearches}
}

// Create handles POST /api/v1/saved-searches
func (h *SavedSearchHandler) Create(c *gin.Context) {
	var req model.SaveSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	saved, err := h.savedSearches.Save(c.Request.Context(), req.Name, req.Criteria)
	if err != nil {
		if errors.Is(err, model.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save search: " + err.Error()})
		return
	}

	c.JSON(http.StatusCreated, saved)
}

// List handles GET /api/v1/saved-searches
func (h *SavedSearchHandler) List(c *gin.Context) {
	searches, err := h.savedSearches.List(c.Request.Context())
	if err != nil {
		if errors.Is(err, model.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list saved searches: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": searches, "total": len(searches)})
}

// Delete handles DELETE /api/v1/saved-searches/:id
func (h *SavedSearchHandler) Delete(c *gin.Context) {
	err := h.savedSearches.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Saved search not found"})
		case errors.Is(err, model.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete saved search: " + err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
