package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"crimemap/internal/models"
	"crimemap/internal/utils"

	"go.uber.org/zap"
)

// maxImportBody limits the size of an import payload.
const maxImportBody = 32 << 20

// IncidentStore is what the incident handler needs from the service layer.
type IncidentStore interface {
	QueryIncidents(ctx context.Context, q models.IncidentQuery) ([]models.Incident, error)
	ImportIncidents(ctx context.Context, records []models.IncidentRecord) (*models.ImportResult, error)
}

type IncidentHandler struct {
	service IncidentStore
	logr    *zap.Logger
}

func NewIncidentHandler(svc IncidentStore, logr *zap.Logger) *IncidentHandler {
	return &IncidentHandler{service: svc, logr: logr}
}

// QueryIncidents handles POST /incidents with an IncidentQuery body.
func (h *IncidentHandler) QueryIncidents(w http.ResponseWriter, r *http.Request) {
	var q models.IncidentQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON input: "+err.Error())
		return
	}
	h.respondIncidents(w, r, q)
}

// QueryIncidentsFromURL handles GET /incidents with the query in the URL.
func (h *IncidentHandler) QueryIncidentsFromURL(w http.ResponseWriter, r *http.Request) {
	q, err := parseIncidentQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respondIncidents(w, r, q)
}

func (h *IncidentHandler) respondIncidents(w http.ResponseWriter, r *http.Request, q models.IncidentQuery) {
	if err := q.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	incidents, err := h.service.QueryIncidents(r.Context(), q)
	if err != nil {
		h.logr.Error("failed to query incidents", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to retrieve incidents")
		return
	}

	out := make([]models.IncidentRecord, len(incidents))
	for i, inc := range incidents {
		out[i] = inc.Record()
	}

	h.logr.Debug("incidents served",
		zap.Int("count", len(out)),
		zap.Int("excluded", len(q.ExcludedIDs)),
		zap.Int("subcategories", len(q.Subcategories)))
	writeJSON(w, http.StatusOK, out)
}

// ImportIncidents handles POST /incidents/import.
func (h *IncidentHandler) ImportIncidents(w http.ResponseWriter, r *http.Request) {
	var records []models.IncidentRecord
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxImportBody)).Decode(&records); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON input: "+err.Error())
		return
	}

	res, err := h.service.ImportIncidents(r.Context(), records)
	if err != nil {
		h.logr.Error("failed to import incidents", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to import incidents")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func parseIncidentQuery(values map[string][]string) (models.IncidentQuery, error) {
	var q models.IncidentQuery
	var err error

	coords := []struct {
		key string
		dst **float64
	}{
		{"north", &q.North},
		{"south", &q.South},
		{"east", &q.East},
		{"west", &q.West},
	}
	for _, c := range coords {
		if *c.dst, err = utils.ParseQueryFloat(values, c.key); err != nil {
			return q, err
		}
	}

	if q.Subcategories, err = utils.ParseQueryIntList(values, "subCategories"); err != nil {
		return q, err
	}
	if q.ExcludedIDs, err = utils.ParseQueryIntList(values, "excludedIDs"); err != nil {
		return q, err
	}
	if v := values["startDate"]; len(v) > 0 {
		q.StartDate = v[0]
	}
	if v := values["endDate"]; len(v) > 0 {
		q.EndDate = v[0]
	}
	return q, nil
}
