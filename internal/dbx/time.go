package dbx

import "time"

// UnixNano converts t for storage in an INTEGER column (SQLite backend).
func UnixNano(t time.Time) int64 {
	return t.UTC().UnixNano()
}

// FromUnixNano converts an INTEGER column value back to a UTC time.
func FromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
