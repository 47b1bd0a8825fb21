package crawler

import (
	"fmt"
	"strings"
	"time"

	"sitedex/internal/urlx"
)

const (
	DefaultMaxDepth = 1
	DefaultMaxPages = 50
	DefaultDelayMs  = 200

	maxDepthCap = 6
	maxPagesCap = 1000
	delayMsCap  = 5000
)

// ValidationError means the ingestion request itself is unusable; nothing
// was fetched or stored.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Request describes one ingestion run. Pointer fields distinguish absent
// from zero: absent takes the default, present values are clamped into
// range.
type Request struct {
	StartAddress string
	Namespace    string
	PathPrefix   string
	Title        string
	MaxDepth     *int
	MaxPages     *int
	DelayMs      *int
}

// params is a Request after validation: seed canonicalized, namespace
// derived when absent, limits clamped.
type params struct {
	startAddress string
	namespace    string
	pathPrefix   string
	title        string
	maxDepth     int
	maxPages     int
	delay        time.Duration
}

func (r Request) normalized() (params, error) {
	if strings.TrimSpace(r.StartAddress) == "" {
		return params{}, &ValidationError{Field: "startAddress", Reason: "required"}
	}
	canonical, err := urlx.Canonicalize(r.StartAddress)
	if err != nil {
		return params{}, &ValidationError{Field: "startAddress", Reason: err.Error()}
	}

	namespace := strings.TrimSpace(r.Namespace)
	if namespace == "" {
		namespace, err = urlx.Namespace(canonical)
		if err != nil {
			return params{}, &ValidationError{Field: "namespace", Reason: err.Error()}
		}
	}

	return params{
		startAddress: canonical,
		namespace:    namespace,
		pathPrefix:   urlx.NormalizePathPrefix(r.PathPrefix),
		title:        strings.TrimSpace(r.Title),
		maxDepth:     clamp(r.MaxDepth, DefaultMaxDepth, 0, maxDepthCap),
		maxPages:     clamp(r.MaxPages, DefaultMaxPages, 1, maxPagesCap),
		delay:        time.Duration(clamp(r.DelayMs, DefaultDelayMs, 0, delayMsCap)) * time.Millisecond,
	}, nil
}

func clamp(v *int, def, lo, hi int) int {
	if v == nil {
		return def
	}
	if *v < lo {
		return lo
	}
	if *v > hi {
		return hi
	}
	return *v
}
