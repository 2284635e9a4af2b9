package adaptor

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/ponyo877/roomcast/server/domain"
)

// QueryOptions bound history queries.
type QueryOptions struct {
	DefaultLimit int
	// MaxLimit is the store retention; larger limits are clamped to it.
	MaxLimit int
}

func DefaultQueryOptions() QueryOptions {
	return QueryOptions{DefaultLimit: domain.DefaultQueryLimit, MaxLimit: 100}
}

// ParseHistoryQuery reads room, limit, search and before from v.
// before is an RFC 3339 timestamp or Unix milliseconds.
func ParseHistoryQuery(v url.Values, opts QueryOptions) (string, domain.MessageQuery, error) {
	room := v.Get("room")
	if room == "" {
		return "", domain.MessageQuery{}, fmt.Errorf("%w: room is required", domain.ErrInvalidRequest)
	}
	limit, err := ParseLimit(v.Get("limit"), opts)
	if err != nil {
		return "", domain.MessageQuery{}, err
	}
	q := domain.MessageQuery{Search: v.Get("search"), Limit: limit}
	if raw := v.Get("before"); raw != "" {
		before, err := parseBefore(raw)
		if err != nil {
			return "", domain.MessageQuery{}, err
		}
		q.Before = before
	}
	return room, q, nil
}

// ParseLimit applies the default for an empty value and clamps to MaxLimit.
func ParseLimit(raw string, opts QueryOptions) (int, error) {
	if raw == "" {
		return min(opts.DefaultLimit, opts.MaxLimit), nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("%w: limit must be a positive integer, got %q", domain.ErrInvalidRequest, raw)
	}
	return min(limit, opts.MaxLimit), nil
}

func parseBefore(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	return time.Time{}, fmt.Errorf("%w: before must be RFC 3339 or Unix milliseconds, got %q", domain.ErrInvalidRequest, raw)
}
