package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mchmarny/fairaudit/pkg/config"
	"github.com/mchmarny/fairaudit/pkg/data"
	"github.com/mchmarny/fairaudit/pkg/dataset"
	"github.com/mchmarny/fairaudit/pkg/fairness"
	"github.com/mchmarny/fairaudit/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T) *auditAPI {
	t.Helper()
	path := filepath.Join(t.TempDir(), data.DataFileName)
	require.NoError(t, data.Init(path))
	db, err := data.GetDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &auditAPI{
		db:       db,
		profile:  config.Default(),
		recorder: metrics.NewRecorder(),
	}
}

func TestAuditHandler(t *testing.T) {
	api := newTestAPI(t)
	router := makeRouter(api)

	req := httptest.NewRequest(http.MethodPost, "/audit?prediction=pred&source=compas&save=true", strings.NewReader(testCSV))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var got data.Audit
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "compas", got.Source)
	assert.Equal(t, "pred", got.Prediction)
	assert.NotEmpty(t, got.ID)
	assert.True(t, got.Metrics.Get(fairness.StatisticalParityDifference).Defined)

	req = httptest.NewRequest(http.MethodGet, "/audits/"+got.ID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/audits?limit=5", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var list []*data.Audit
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, got.ID, list[0].ID)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `fairaudit_metric_value{metric="disparate_impact",source="compas"}`)
	assert.Contains(t, w.Body.String(), `fairaudit_audits_total{outcome="ok"}`)
}

func TestAuditHandler_NotSaved(t *testing.T) {
	api := newTestAPI(t)
	router := makeRouter(api)

	req := httptest.NewRequest(http.MethodPost, "/audit", strings.NewReader(testCSV))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	list, err := data.ListAudits(api.db, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAuditHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		body   string
		status int
	}{
		{"bad favorable", "?favorable=x", testCSV, http.StatusBadRequest},
		{"favorable out of range", "?favorable=2", testCSV, http.StatusBadRequest},
		{"missing column", "?label=nope", testCSV, http.StatusBadRequest},
		{"empty group", "?privileged=Martian", testCSV, http.StatusUnprocessableEntity},
		{"no records", "", "race,two_year_recid,decile_score\n", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := makeRouter(newTestAPI(t))
			req := httptest.NewRequest(http.MethodPost, "/audit"+tt.query, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestGetHandler_NotFound(t *testing.T) {
	router := makeRouter(newTestAPI(t))
	req := httptest.NewRequest(http.MethodGet, "/audits/does-not-exist", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuditHandler_OtherDataset(t *testing.T) {
	router := makeRouter(newTestAPI(t))

	req := httptest.NewRequest(http.MethodPost,
		"/audit?protected=sex&privileged=Female&label=y&prediction=y_hat&favorable=1", strings.NewReader(sexCSV))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got data.Audit
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 6, got.Records)
}

func TestProfileFromQuery(t *testing.T) {
	base := config.Default()
	req := httptest.NewRequest(http.MethodPost, "/audit?protected=sex&privileged=Female,Other&label=y&favorable=1", nil)

	p, err := profileFromQuery(base, req)
	require.NoError(t, err)
	assert.Equal(t, "sex", p.Protected)
	assert.Equal(t, []string{"Female", "Other"}, p.Privileged)
	assert.Equal(t, "y", p.Label)
	assert.Equal(t, 1, p.Favorable)
	assert.Empty(t, p.Score)
	assert.Equal(t, config.Default(), base)

	req = httptest.NewRequest(http.MethodPost, "/audit?label=is_recid", nil)
	p, err = profileFromQuery(base, req)
	require.NoError(t, err)
	assert.Empty(t, p.Score)

	req = httptest.NewRequest(http.MethodPost, "/audit?label=is_recid&score=decile_score", nil)
	p, err = profileFromQuery(base, req)
	require.NoError(t, err)
	assert.Equal(t, "decile_score", p.Score)
}

func TestAuditErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity,
		auditErrorStatus(fmt.Errorf("computing metrics: %w", fairness.ErrEmptyGroup)))
	assert.Equal(t, http.StatusBadRequest,
		auditErrorStatus(fmt.Errorf("loading dataset: %w", dataset.ErrNoRecords)))
	assert.Equal(t, http.StatusRequestEntityTooLarge,
		auditErrorStatus(fmt.Errorf("loading dataset: %w", &http.MaxBytesError{Limit: 1})))
	assert.Equal(t, http.StatusBadRequest, auditErrorStatus(errors.New("boom")))
}

func TestQueryParamInt(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", listLimitDefault},
		{"?limit=5", 5},
		{"?limit=abc", listLimitDefault},
		{"?limit=0", listLimitDefault},
		{"?limit=100000", listLimitDefault},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/audits"+tt.query, nil)
			assert.Equal(t, tt.want, queryParamInt(req, "limit", listLimitDefault))
		})
	}
}
