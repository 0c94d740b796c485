package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crimemap/internal/markersync"
	"crimemap/internal/models"
)

func TestFetchIncidents(t *testing.T) {
	var got models.IncidentQuery
	var requestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/incidents" {
			http.NotFound(w, r)
			return
		}
		requestID = r.Header.Get("X-Request-ID")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`[{"id":3,"latitude":-23.5,"longitude":-46.6,"subcategory_id":5,"crime_date":"2024-01-02"},{"id":4,"latitude":null,"longitude":1,"subcategory_id":5,"crime_date":"2024-01-02"}]`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", time.Second)
	q := models.NewIncidentQuery(models.Bounds{North: 1, South: 0, East: 1, West: 0},
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), []int{5}, []int{1, 2})

	ctx := markersync.WithRequestID(context.Background(), "req-1")
	recs, err := c.FetchIncidents(ctx, q)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(recs))
	}
	if _, err := recs[0].Incident(); err != nil {
		t.Errorf("Expected first record valid, got %v", err)
	}
	if _, err := recs[1].Incident(); !errors.Is(err, models.ErrMissingCoordinates) {
		t.Errorf("Expected second record to lack coordinates, got %v", err)
	}
	if requestID != "req-1" {
		t.Errorf("Expected request id forwarded, got %q", requestID)
	}
	if got.StartDate != "2024-01-01" || len(got.ExcludedIDs) != 2 || len(got.Subcategories) != 1 || got.Subcategories[0] != 5 {
		t.Errorf("Unexpected query on the wire %+v", got)
	}
}

func TestFetchIncidentsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database query error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).FetchIncidents(context.Background(), models.IncidentQuery{})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusInternalServerError {
		t.Errorf("Expected StatusError 500, got %v", err)
	}
}

func TestCategories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"name":"theft","subcategories":[{"id":5,"name":"pickpocket","display_name":"Pickpocketing"}]}]`))
	}))
	defer srv.Close()

	cats, err := New(srv.URL, time.Second).Categories(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(cats) != 1 || len(cats[0].Subcategories) != 1 || cats[0].Subcategories[0].DisplayName != "Pickpocketing" {
		t.Errorf("Unexpected categories %+v", cats)
	}
}

func TestFetchIncidentsHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := New(srv.URL, 0).FetchIncidents(ctx, models.IncidentQuery{}); err == nil {
		t.Error("Expected context error")
	}
}
