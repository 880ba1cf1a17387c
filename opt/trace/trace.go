package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures every dispatch and resolution.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// RunTrace collects decision records during a coordinator run.
// A nil *RunTrace records nothing.
type RunTrace struct {
	Level       TraceLevel
	Dispatches  []DispatchRecord
	Resolutions []ResolutionRecord
}

// New returns a RunTrace for level, or nil when level disables tracing.
func New(level TraceLevel) *RunTrace {
	if level == "" || level == TraceLevelNone {
		return nil
	}
	return &RunTrace{
		Level:       level,
		Dispatches:  make([]DispatchRecord, 0),
		Resolutions: make([]ResolutionRecord, 0),
	}
}

// RecordDispatch appends a dispatch record.
func (rt *RunTrace) RecordDispatch(record DispatchRecord) {
	if rt == nil {
		return
	}
	rt.Dispatches = append(rt.Dispatches, record)
}

// RecordResolution appends a resolution record.
func (rt *RunTrace) RecordResolution(record ResolutionRecord) {
	if rt == nil {
		return
	}
	rt.Resolutions = append(rt.Resolutions, record)
}
