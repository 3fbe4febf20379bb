package observability

// Shared metric names and attribute keys. Centralizing them keeps dashboards
// stable when call sites move around.

// Metric names.
const (
	MetricGatewayRequests = "gateway.requests"      // counter, one per completion request
	MetricGatewayLatency  = "gateway.latency_ms"    // histogram, wall time per request
	MetricGatewayStops    = "gateway.stops"         // counter, explicit stop calls
	MetricStreamFrames    = "gateway.stream.frames" // counter, frames forwarded to clients
	MetricBreakerTrips    = "breaker.trips"         // counter, closed->open transitions
	MetricBreakerRejects  = "breaker.rejections"    // counter, fail-fast short circuits
	MetricVendorTokens    = "vendor.tokens"         // counter, total tokens per turn
	MetricVendorLatency   = "vendor.latency_ms"     // histogram, upstream call wall time
	MetricVendorCost      = "vendor.cost_usd"       // histogram, estimated dollar cost per turn
)

// Attribute keys.
const (
	AttrVendor       = "vendor"
	AttrModel        = "model"
	AttrOperation    = "operation"
	AttrFinishReason = "finish_reason"
	AttrErrorKind    = "error_kind"
	AttrStatus       = "status"
	AttrStreaming    = "streaming"
)
