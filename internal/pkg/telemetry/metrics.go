package telemetry

// Span and attribute names used for instrumentation.
const (
	// Tracer scope
	TracerName = "github.com/samirrijal/osmdash"

	// Spans
	SpanOverpassFetch  = "overpass.fetch"
	SpanSchedulerFetch = "scheduler.fetch"

	// Attributes
	AttrRadius     = "poi.radius_m"
	AttrOriginLat  = "poi.origin.lat"
	AttrOriginLon  = "poi.origin.lon"
	AttrTagValues  = "poi.tag_values"
	AttrElements   = "overpass.elements"
	AttrHTTPStatus = "http.status_code"
	AttrFetchSeq   = "scheduler.seq"
	AttrErrorKind  = "fetch.error_kind"
)
