package cli

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/mchmarny/fairaudit/pkg/config"
	"github.com/mchmarny/fairaudit/pkg/data"
	"github.com/mchmarny/fairaudit/pkg/fairness"
	"github.com/mchmarny/fairaudit/pkg/metrics"
)

const (
	maxUploadBytes   = 256 << 20
	sourceDefault    = "upload"
	listLimitDefault = 20
	listLimitMax     = 500
)

type auditAPI struct {
	db       *sql.DB
	profile  *config.Config
	recorder *metrics.Recorder
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// auditHandler computes an audit for the CSV request body. Query params
// override the server profile: protected, privileged (comma separated),
// label, prediction, score, favorable, source, save. Overriding protected or
// label without score drops the profile's score column.
func (a *auditAPI) auditHandler(w http.ResponseWriter, r *http.Request) {
	profile, err := profileFromQuery(a.profile, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	source := r.URL.Query().Get("source")
	if source == "" {
		source = sourceDefault
	}

	body := http.MaxBytesReader(w, r.Body, maxUploadBytes)
	audit, err := runAudit(r.Context(), body, auditOptions{
		Source:   source,
		Profile:  profile,
		Parallel: true,
	})
	if err != nil {
		a.recorder.RecordFailure()
		slog.Error("audit failed", "source", source, "error", err)
		writeError(w, auditErrorStatus(err), err.Error())
		return
	}

	if save, _ := strconv.ParseBool(r.URL.Query().Get("save")); save {
		if err := data.SaveAudit(a.db, audit); err != nil {
			slog.Error("failed to save audit", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to save audit")
			return
		}
	}

	a.recorder.Record(source, audit.Metrics, audit.Groups...)
	writeJSON(w, http.StatusOK, audit)
}

func (a *auditAPI) listHandler(w http.ResponseWriter, r *http.Request) {
	limit := queryParamInt(r, "limit", listLimitDefault)
	list, err := data.ListAudits(a.db, limit)
	if err != nil {
		slog.Error("failed to list audits", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list audits")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *auditAPI) getHandler(w http.ResponseWriter, r *http.Request) {
	audit, err := data.GetAudit(a.db, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, data.ErrAuditNotFound) {
			writeError(w, http.StatusNotFound, "audit not found")
			return
		}
		slog.Error("failed to get audit", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get audit")
		return
	}
	writeJSON(w, http.StatusOK, audit)
}

func auditErrorStatus(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, fairness.ErrEmptyGroup),
		errors.Is(err, fairness.ErrInvalidAttributeValue):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func profileFromQuery(base *config.Config, r *http.Request) (*config.Config, error) {
	q := r.URL.Query()
	p := *base
	p.Privileged = slices.Clone(base.Privileged)

	if v := q.Get("protected"); v != "" {
		p.Protected = v
	}
	if v := q.Get("privileged"); v != "" {
		p.Privileged = strings.Split(v, ",")
	}
	if v := q.Get("label"); v != "" {
		p.Label = v
	}
	if q.Has("prediction") {
		p.Prediction = q.Get("prediction")
	}
	if q.Has("score") {
		p.Score = q.Get("score")
	} else if q.Has("protected") || q.Has("label") {
		p.Score = ""
	}
	if v := q.Get("favorable"); v != "" {
		f, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.New("favorable must be 0 or 1")
		}
		p.Favorable = f
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func queryParamInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}

	i, err := strconv.Atoi(v)
	if err != nil {
		slog.Error("error converting query string to int", "value", v, "error", err)
		return def
	}

	if i < 1 || i > listLimitMax {
		return def
	}

	return i
}
