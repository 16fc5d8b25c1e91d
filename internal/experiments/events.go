package experiments

import (
	"strings"
	"time"

	"github.com/vibechecc/backend/internal/analytics"
)

// Analytics event names emitted by the service.
const (
	EventConfigured = "experiment_configured"
	EventAssigned   = "experiment_assigned"
	EventExposure   = "experiment_exposure"
	EventConversion = "experiment_conversion"
)

// emit enriches an event with contextual metadata and hands it to the
// sink. At-most-once: a dropped event costs analytics completeness, never
// assignment correctness.
func (s *Service) emit(name, distinctID string, props map[string]any, ctx *Context) {
	if props == nil {
		props = make(map[string]any)
	}
	props["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	props["service"] = "vibechecc-backend"
	if ctx != nil {
		if ctx.Page != "" {
			props["page"] = ctx.Page
		}
		if ctx.Platform != "" {
			props["platform"] = string(ctx.Platform)
		}
		if ctx.UserAgent != "" {
			props["device_type"] = classifyDevice(ctx.UserAgent)
		}
		if ctx.Connection != "" {
			props["connection_type"] = ctx.Connection
		}
		if ctx.SessionID != "" {
			props["session_id"] = ctx.SessionID
		}
	}

	s.sink.Enqueue(analytics.Event{
		Name:       name,
		DistinctID: distinctID,
		Properties: props,
		Timestamp:  time.Now().UTC(),
	})
}

// classifyDevice buckets a user agent into a coarse device class. Rough on
// purpose; it feeds analytics segmentation, nothing else.
func classifyDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "bot") || strings.Contains(ua, "crawler") || strings.Contains(ua, "spider"):
		return "bot"
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return "tablet"
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "iphone") || strings.Contains(ua, "android"):
		return "mobile"
	default:
		return "desktop"
	}
}
