package buyers

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// ErrBadToken is returned when the concurrency token cannot be normalized.
var ErrBadToken = errors.New("updatedAt must be an epoch-millisecond value")

// NormalizeToken converts the concurrency token a client supplies into epoch
// milliseconds. The canonical wire form is an integer epoch-ms value; numeric
// strings and RFC3339 date strings are accepted as legacy shims, with the
// numeric parse attempted before the date parse.
func NormalizeToken(v any) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, ErrBadToken
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		if f, err := t.Float64(); err == nil {
			return int64(f), nil
		}
		return 0, ErrBadToken
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return int64(f), nil
		}
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts.UnixMilli(), nil
		}
		return 0, ErrBadToken
	case time.Time:
		return t.UnixMilli(), nil
	default:
		return 0, ErrBadToken
	}
}

// Milli truncates a timestamp to the millisecond precision used for token
// comparison.
func Milli(t time.Time) int64 {
	return t.UnixMilli()
}
