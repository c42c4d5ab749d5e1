package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isDuplicateKey checks if a PostgreSQL error is a unique_violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// ── JSON column helpers ───────────────────────────────────────────

func stringsToJSON(ss []string) []byte {
	if ss == nil {
		return []byte("[]")
	}
	b, _ := json.Marshal(ss) //nolint:errcheck // []string never fails
	return b
}

func jsonToStrings(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	var ss []string
	_ = json.Unmarshal(b, &ss) //nolint:errcheck // best effort
	if len(ss) == 0 {
		return nil
	}
	return ss
}

func mapToJSON(m map[string]string) []byte {
	if m == nil {
		return []byte("{}")
	}
	b, _ := json.Marshal(m) //nolint:errcheck // map[string]string never fails
	return b
}

func jsonToMap(b []byte) map[string]string {
	if len(b) == 0 {
		return nil
	}
	m := make(map[string]string)
	_ = json.Unmarshal(b, &m) //nolint:errcheck // best effort
	if len(m) == 0 {
		return nil
	}
	return m
}

func anyMapToJSON(m map[string]any) []byte {
	if m == nil {
		return []byte("{}")
	}
	b, err := json.Marshal(m)
	if err != nil {
		return []byte("{}")
	}
	return b
}

func jsonToAnyMap(b []byte) map[string]any {
	if len(b) == 0 {
		return nil
	}
	m := make(map[string]any)
	_ = json.Unmarshal(b, &m) //nolint:errcheck // best effort
	if len(m) == 0 {
		return nil
	}
	return m
}
