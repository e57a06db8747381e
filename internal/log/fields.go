package log

import "sort"

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldRunID       = "run_id"
	FieldSource      = "source"
	FieldLine        = "line"
	FieldRowsRead    = "rows_read"
	FieldRowsDropped = "rows_dropped"
	FieldRowsParsed  = "rows_parsed"
	FieldCategory    = "category"
	FieldFormat      = "format"
	FieldOutput      = "output"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentMapper     = "mapper"
	ComponentClassifier = "classifier"
	ComponentPipeline   = "pipeline"
	ComponentRender     = "render"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentSheets     = "sheets"
	ComponentSource     = "source"
	ComponentCache      = "cache"
	ComponentRateLimit  = "rate_limit"
)

// Operations defines standard operation names
const (
	OpParse    = "parse"
	OpClassify = "classify"
	OpAnalyze  = "analyze"
	OpRender   = "render"
	OpExport   = "export"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpFilter   = "filter"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithRun adds the run identifier and its source name.
func (f LogFields) WithRun(runID, source string) LogFields {
	f[FieldRunID] = runID
	f[FieldSource] = source
	return f
}

// WithRows adds row accounting of a parse step.
func (f LogFields) WithRows(read, parsed, dropped int) LogFields {
	f[FieldRowsRead] = read
	f[FieldRowsParsed] = parsed
	f[FieldRowsDropped] = dropped
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, clientIP string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldClientIP] = clientIP
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	return f
}

// ToSlice converts LogFields to a key/value slice for slog, sorted by key so
// output is stable.
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}
