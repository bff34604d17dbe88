package workspace

import "time"

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusPartial Status = "partial"
	StatusSkipped Status = "skipped"
)

// RunRecord captures the outcome of one compiler run for later inspection.
type RunRecord struct {
	Compiler  string       `json:"compiler"`
	Verb      string       `json:"verb"`
	Status    Status       `json:"status"`
	OutputDir string       `json:"output_dir,omitempty"`
	Units     []UnitRecord `json:"units,omitempty"`
	Error     *ErrorInfo   `json:"error,omitempty"`
	Metrics   *Metrics     `json:"metrics,omitempty"`
}

type UnitRecord struct {
	Name       string `json:"name"`
	Invoked    bool   `json:"invoked"`
	Reason     string `json:"reason,omitempty"`
	Code       int    `json:"code"`
	Outcome    string `json:"outcome,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	LogPath    string `json:"log_path,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Metrics struct {
	DurationMs int64     `json:"duration_ms"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
}

// Builder pattern
type Builder struct {
	rec *RunRecord
}

func NewRecord(compilerName, verb string) *Builder {
	return &Builder{rec: &RunRecord{Compiler: compilerName, Verb: verb}}
}

func (b *Builder) Success() *Builder {
	b.rec.Status = StatusSuccess
	return b
}

func (b *Builder) Failure(code, message string) *Builder {
	b.rec.Status = StatusFailure
	b.rec.Error = &ErrorInfo{Code: code, Message: message}
	return b
}

func (b *Builder) Partial() *Builder {
	b.rec.Status = StatusPartial
	return b
}

func (b *Builder) Skipped() *Builder {
	b.rec.Status = StatusSkipped
	return b
}

func (b *Builder) WithOutputDir(dir string) *Builder {
	b.rec.OutputDir = dir
	return b
}

func (b *Builder) WithUnit(u UnitRecord) *Builder {
	b.rec.Units = append(b.rec.Units, u)
	return b
}

func (b *Builder) WithTiming(start, end time.Time) *Builder {
	b.rec.Metrics = &Metrics{
		DurationMs: end.Sub(start).Milliseconds(),
		StartTime:  start,
		EndTime:    end,
	}
	return b
}

func (b *Builder) Build() *RunRecord {
	return b.rec
}
