package pipeline

// TotalSteps is the number of stages a full (uncached) run reports.
const TotalSteps = 8

// Progress statuses
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCacheHit  = "cache_hit"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Stage      string `json:"stage"`
	Step       int    `json:"step"`
	Total      int    `json:"total"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// emit calls the callback if configured
func (cb ProgressCallback) emit(event ProgressEvent) {
	if cb != nil {
		cb(event)
	}
}
