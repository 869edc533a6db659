package ingest

// Event types accepted on the ingest endpoint.
const (
	EventTypeWebVital = "web_vital"
	EventTypeResource = "resource"
	EventTypeError    = "error"
)

// MaxEventsPerBatch caps the size of a single ingestion request.
const MaxEventsPerBatch = 1000

// ValidMetrics are the Core Web Vitals column names the pipeline knows
// how to persist. Metric names are matched case-insensitively.
var ValidMetrics = []string{"cls", "fid", "lcp", "inp", "ttfb"}

// Event is one raw browser event. Events are transient: they exist in
// the request body and the queue payload, and are never persisted as-is.
type Event struct {
	Type      string                 `json:"type"`
	Name      string                 `json:"name"`
	Value     *float64               `json:"value,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	TS        *float64               `json:"ts"`
	Page      string                 `json:"page"`
	SessionID string                 `json:"sessionId"`
}

// Batch is the body of POST /v1/ingest and the payload of a metrics job.
type Batch struct {
	ProjectKey string  `json:"projectKey"`
	Events     []Event `json:"events"`
}

// ErrorDetail is the error object carried by an error report.
type ErrorDetail struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// ErrorReport is the body of POST /v1/errors and the payload of an
// errors job. One report maps to one js_errors row.
type ErrorReport struct {
	ProjectKey string       `json:"projectKey"`
	Error      *ErrorDetail `json:"error"`
	Page       string       `json:"page"`
	SessionID  string       `json:"sessionId,omitempty"`
	Timestamp  *float64     `json:"timestamp,omitempty"`
	UserAgent  string       `json:"userAgent,omitempty"`
	DeviceType string       `json:"deviceType,omitempty"`
	Browser    string       `json:"browser,omitempty"`
	Country    string       `json:"country,omitempty"`
}
