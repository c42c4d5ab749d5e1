package bunstore

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/uptrace/bun/driver/pgdriver"
)

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isDuplicateKey checks if a PostgreSQL error is a unique_violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	return false
}

// ── JSON column helpers ───────────────────────────────────────────

func stringsToJSON(ss []string) string {
	if ss == nil {
		return "[]"
	}
	b, _ := json.Marshal(ss) //nolint:errcheck // []string never fails
	return string(b)
}

func jsonToStrings(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}
	var ss []string
	_ = json.Unmarshal([]byte(s), &ss) //nolint:errcheck // best effort
	return ss
}

func mapToJSON(m map[string]string) string {
	if m == nil {
		return "{}"
	}
	b, _ := json.Marshal(m) //nolint:errcheck // map[string]string never fails
	return string(b)
}

func jsonToMap(s string) map[string]string {
	if s == "" || s == "{}" {
		return nil
	}
	m := make(map[string]string)
	_ = json.Unmarshal([]byte(s), &m) //nolint:errcheck // best effort
	return m
}

func anyMapToJSON(m map[string]any) string {
	if m == nil {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func jsonToAnyMap(s string) map[string]any {
	if s == "" || s == "{}" {
		return nil
	}
	m := make(map[string]any)
	_ = json.Unmarshal([]byte(s), &m) //nolint:errcheck // best effort
	return m
}
