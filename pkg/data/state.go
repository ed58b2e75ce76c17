package data

import (
	"database/sql"
	"errors"
	"fmt"
)

var stateQueries = map[string]string{
	"audit":          "SELECT COUNT(*) FROM audit",
	"audit_metric":   "SELECT COUNT(*) FROM audit_metric",
	"audit_group":    "SELECT COUNT(*) FROM audit_group",
	"undefined":      "SELECT COUNT(*) FROM audit_metric WHERE value IS NULL",
	"schema_version": "SELECT COALESCE(MAX(version), 0) FROM schema_version",
}

// GetDataState returns row counts describing the history store.
func GetDataState(db *sql.DB) (map[string]int64, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	state := make(map[string]int64, len(stateQueries))
	for k, q := range stateQueries {
		count, err := getCount(db, q)
		if err != nil {
			return nil, fmt.Errorf("error getting %s count: %w", k, err)
		}
		state[k] = count
	}
	return state, nil
}

func getCount(db *sql.DB, query string) (int64, error) {
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to scan row: %w", err)
	}
	return count, nil
}
