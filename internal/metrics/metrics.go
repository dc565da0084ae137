package metrics

import (
	"sync"
	"time"
)

// SkipReason says why a source row did not become a candidate.
type SkipReason string

const (
	SkipMissingField  SkipReason = "missing_field"
	SkipUnparseable   SkipReason = "unparseable_timestamp"
	SkipOutsideWindow SkipReason = "outside_window"
)

// Metrics collects the counters of one pipeline run.
type Metrics struct {
	mu sync.RWMutex

	// Selection
	RowsScanned        int64
	RowsSkipped        map[SkipReason]int64
	FeedsRead          int64
	FeedsSkipped       int64
	CandidatesSelected int64
	DuplicatesFiltered int64

	// Ledger writes
	RowsAppended  int64
	KeysRewritten int64
	LabelsWritten int64

	// Classifier
	BatchesSubmitted int64
	BatchesFailed    int64
	BatchesDeferred  int64

	// Timings
	LastProcessingTime time.Duration

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

func New() *Metrics {
	return &Metrics{
		RowsSkipped: make(map[SkipReason]int64),
		IsHealthy:   true,
	}
}

func (m *Metrics) IncrementRowsScanned() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RowsScanned++
}

func (m *Metrics) IncrementRowsSkipped(reason SkipReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RowsSkipped[reason]++
}

func (m *Metrics) IncrementFeedsRead() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FeedsRead++
}

func (m *Metrics) IncrementFeedsSkipped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FeedsSkipped++
}

func (m *Metrics) IncrementCandidatesSelected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CandidatesSelected++
}

func (m *Metrics) AddDuplicatesFiltered(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicatesFiltered += int64(n)
}

func (m *Metrics) AddRowsAppended(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RowsAppended += int64(n)
}

func (m *Metrics) AddKeysRewritten(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.KeysRewritten += int64(n)
}

func (m *Metrics) AddLabelsWritten(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LabelsWritten += int64(n)
}

func (m *Metrics) IncrementBatchesSubmitted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BatchesSubmitted++
}

func (m *Metrics) IncrementBatchesFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BatchesFailed++
}

func (m *Metrics) AddBatchesDeferred(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BatchesDeferred += int64(n)
}

func (m *Metrics) RecordProcessingTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastProcessingTime = duration
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

// Skipped returns the skip count for one reason.
func (m *Metrics) Skipped(reason SkipReason) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RowsSkipped[reason]
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"rows_scanned":               m.RowsScanned,
		"rows_skipped_missing_field": m.RowsSkipped[SkipMissingField],
		"rows_skipped_unparseable":   m.RowsSkipped[SkipUnparseable],
		"rows_outside_window":        m.RowsSkipped[SkipOutsideWindow],
		"feeds_read":                 m.FeedsRead,
		"feeds_skipped":              m.FeedsSkipped,
		"candidates_selected":        m.CandidatesSelected,
		"duplicates_filtered":        m.DuplicatesFiltered,
		"rows_appended":              m.RowsAppended,
		"keys_rewritten":             m.KeysRewritten,
		"labels_written":             m.LabelsWritten,
		"batches_submitted":          m.BatchesSubmitted,
		"batches_failed":             m.BatchesFailed,
		"batches_deferred":           m.BatchesDeferred,
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"last_run_time":              m.LastRunTime.Format(time.RFC3339),
		"last_error":                 m.LastError,
		"is_healthy":                 m.IsHealthy,
	}
}

// LogArgs flattens GetStats into slog key/value pairs.
func (m *Metrics) LogArgs() []any {
	stats := m.GetStats()
	args := make([]any, 0, len(stats)*2)
	for _, k := range statOrder {
		args = append(args, k, stats[k])
	}
	return args
}

var statOrder = []string{
	"rows_scanned",
	"rows_skipped_missing_field",
	"rows_skipped_unparseable",
	"rows_outside_window",
	"feeds_read",
	"feeds_skipped",
	"candidates_selected",
	"duplicates_filtered",
	"rows_appended",
	"keys_rewritten",
	"labels_written",
	"batches_submitted",
	"batches_failed",
	"batches_deferred",
	"last_processing_time_ms",
	"is_healthy",
}
