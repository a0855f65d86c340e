package repository

import (
	"database/sql"
	"time"
)

// dbTime stores instants in UTC at microsecond precision so both dialects
// round-trip the same value and SQLite text timestamps compare in order
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}
