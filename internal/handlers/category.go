package handlers

import (
	"context"
	"net/http"

	"crimemap/internal/models"

	"go.uber.org/zap"
)

type CategoryStore interface {
	GetCategoriesWithSubcategories(ctx context.Context) ([]models.Category, error)
}

type CategoryHandler struct {
	service CategoryStore
	logr    *zap.Logger
}

func NewCategoryHandler(svc CategoryStore, logr *zap.Logger) *CategoryHandler {
	return &CategoryHandler{service: svc, logr: logr}
}

// GetCategories returns the category tree used to build the filters.
func (h *CategoryHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.GetCategoriesWithSubcategories(r.Context())
	if err != nil {
		h.logr.Error("failed to get categories", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "error fetching categories")
		return
	}
	writeJSON(w, http.StatusOK, categories)
}
