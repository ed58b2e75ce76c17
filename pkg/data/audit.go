package data

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mchmarny/fairaudit/pkg/fairness"
)

const (
	privilegedSeparator = "|"
	auditListLimitMax   = 1000

	// fixed width so created_at orders lexically
	createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

	insertAuditSQL = `INSERT INTO audit (
			id, created_at, source, protected, privileged, label, prediction,
			favorable, rows_read, records, missing, invalid
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertMetricSQL = `INSERT INTO audit_metric (audit_id, metric, value) VALUES (?, ?, ?)`

	insertGroupSQL = `INSERT INTO audit_group (
			audit_id, grp, size, tp, fp, tn, fn, base_rate, favorable_rate, mean_score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectAuditColumns = `id, created_at, source, protected, privileged, label, prediction,
		favorable, rows_read, records, missing, invalid`

	selectAuditSQL = `SELECT ` + selectAuditColumns + ` FROM audit WHERE id = ?`

	selectAuditsSQL = `SELECT ` + selectAuditColumns + ` FROM audit
		ORDER BY created_at DESC, id
		LIMIT ?`

	selectMetricsSQL = `SELECT metric, value FROM audit_metric WHERE audit_id = ?`

	selectGroupsSQL = `SELECT grp, size, tp, fp, tn, fn, base_rate, favorable_rate, mean_score
		FROM audit_group WHERE audit_id = ? ORDER BY grp`

	deleteAuditsSQL = `DELETE FROM audit`
)

// ErrAuditNotFound is returned when no audit has the requested ID.
var ErrAuditNotFound = errors.New("audit not found")

// Audit is one persisted fairness audit run.
type Audit struct {
	ID         string              `json:"id" yaml:"id"`
	CreatedAt  time.Time           `json:"created_at" yaml:"created_at"`
	Source     string              `json:"source" yaml:"source"`
	Protected  string              `json:"protected" yaml:"protected"`
	Privileged []string            `json:"privileged" yaml:"privileged"`
	Label      string              `json:"label" yaml:"label"`
	Prediction string              `json:"prediction,omitempty" yaml:"prediction,omitempty"`
	Favorable  int                 `json:"favorable" yaml:"favorable"`
	Rows       int                 `json:"rows" yaml:"rows"`
	Records    int                 `json:"records" yaml:"records"`
	Missing    int                 `json:"missing" yaml:"missing"`
	Invalid    int                 `json:"invalid" yaml:"invalid"`
	Metrics    fairness.Result     `json:"metrics" yaml:"metrics"`
	Groups     []*fairness.Summary `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// SaveAudit stores the audit with its metrics and group summaries in one
// transaction. A missing ID or timestamp is filled in.
func SaveAudit(db *sql.DB, a *Audit) (retErr error) {
	if db == nil {
		return errDBNotInitialized
	}
	if a == nil {
		return errors.New("audit required")
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if retErr != nil {
			if rerr := tx.Rollback(); rerr != nil {
				retErr = errors.Join(retErr, fmt.Errorf("failed to rollback transaction: %w", rerr))
			}
		}
	}()

	if _, err := tx.Exec(rebind(db, insertAuditSQL),
		a.ID, a.CreatedAt.UTC().Format(createdAtLayout), a.Source, a.Protected,
		strings.Join(a.Privileged, privilegedSeparator), a.Label, a.Prediction,
		a.Favorable, a.Rows, a.Records, a.Missing, a.Invalid); err != nil {
		return fmt.Errorf("failed to insert audit %s: %w", a.ID, err)
	}

	metricStmt, err := tx.Prepare(rebind(db, insertMetricSQL))
	if err != nil {
		return fmt.Errorf("failed to prepare metric statement: %w", err)
	}
	defer metricStmt.Close()

	for m, v := range a.Metrics {
		if _, err := metricStmt.Exec(a.ID, string(m), nullFloat(v)); err != nil {
			return fmt.Errorf("failed to insert metric %s: %w", m, err)
		}
	}

	groupStmt, err := tx.Prepare(rebind(db, insertGroupSQL))
	if err != nil {
		return fmt.Errorf("failed to prepare group statement: %w", err)
	}
	defer groupStmt.Close()

	for _, g := range a.Groups {
		if g == nil {
			continue
		}
		if _, err := groupStmt.Exec(a.ID, g.Group, g.Size,
			g.Counts.TP, g.Counts.FP, g.Counts.TN, g.Counts.FN,
			nullFloat(g.BaseRate), nullFloat(g.FavorableRate), nullFloat(g.MeanScore)); err != nil {
			return fmt.Errorf("failed to insert group %s: %w", g.Group, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetAudit returns a saved audit with its metrics and groups.
func GetAudit(db *sql.DB, id string) (*Audit, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	a, err := scanAudit(db.QueryRow(rebind(db, selectAuditSQL), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", id, ErrAuditNotFound)
		}
		return nil, fmt.Errorf("failed to get audit %s: %w", id, err)
	}

	if a.Metrics, err = getMetrics(db, id); err != nil {
		return nil, err
	}
	if a.Groups, err = getGroups(db, id); err != nil {
		return nil, err
	}
	return a, nil
}

// ListAudits returns the most recent audits with their metrics, newest first.
func ListAudits(db *sql.DB, limit int) ([]*Audit, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	if limit <= 0 || limit > auditListLimitMax {
		limit = auditListLimitMax
	}

	rows, err := db.Query(rebind(db, selectAuditsSQL), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute audit list query: %w", err)
	}
	defer rows.Close()

	list := make([]*Audit, 0)
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit rows: %w", err)
	}
	// release the connection before the per-audit metric queries
	rows.Close()

	for _, a := range list {
		if a.Metrics, err = getMetrics(db, a.ID); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// DeleteAudits removes every saved audit and returns the number removed.
func DeleteAudits(db *sql.DB) (int64, error) {
	if db == nil {
		return 0, errDBNotInitialized
	}

	res, err := db.Exec(deleteAuditsSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to delete audits: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted count: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAudit(row scanner) (*Audit, error) {
	var (
		a          Audit
		createdAt  string
		privileged string
	)
	if err := row.Scan(&a.ID, &createdAt, &a.Source, &a.Protected, &privileged,
		&a.Label, &a.Prediction, &a.Favorable, &a.Rows, &a.Records, &a.Missing, &a.Invalid); err != nil {
		return nil, err
	}

	t, err := time.Parse(createdAtLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing audit time %q: %w", createdAt, err)
	}
	a.CreatedAt = t
	if privileged != "" {
		a.Privileged = strings.Split(privileged, privilegedSeparator)
	}
	return &a, nil
}

func getMetrics(db *sql.DB, id string) (fairness.Result, error) {
	rows, err := db.Query(rebind(db, selectMetricsSQL), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics for %s: %w", id, err)
	}
	defer rows.Close()

	res := make(fairness.Result)
	for rows.Next() {
		var (
			name string
			v    sql.NullFloat64
		)
		if err := rows.Scan(&name, &v); err != nil {
			return nil, fmt.Errorf("failed to scan metric row: %w", err)
		}
		res[fairness.Metric(name)] = fromNull(v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate metric rows: %w", err)
	}
	return res, nil
}

func getGroups(db *sql.DB, id string) ([]*fairness.Summary, error) {
	rows, err := db.Query(rebind(db, selectGroupsSQL), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups for %s: %w", id, err)
	}
	defer rows.Close()

	list := make([]*fairness.Summary, 0, 2)
	for rows.Next() {
		var (
			s                  fairness.Summary
			base, fav, meanVal sql.NullFloat64
		)
		if err := rows.Scan(&s.Group, &s.Size, &s.Counts.TP, &s.Counts.FP, &s.Counts.TN, &s.Counts.FN,
			&base, &fav, &meanVal); err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		s.BaseRate = fromNull(base)
		s.FavorableRate = fromNull(fav)
		s.MeanScore = fromNull(meanVal)
		list = append(list, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate group rows: %w", err)
	}
	return list, nil
}

func nullFloat(v fairness.Value) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v.Value, Valid: v.Defined}
}

func fromNull(v sql.NullFloat64) fairness.Value {
	if !v.Valid {
		return fairness.Undefined
	}
	return fairness.Defined(v.Float64)
}
