package report

import (
	"path/filepath"
	"sync"
	"time"
)

// debounceInterval batches progress writes of the live index file.
const debounceInterval = 100 * time.Millisecond

// IndexWriter owns report.json for a run. Flow writers feed it updates from
// their own goroutines; terminal updates hit the disk immediately while
// progress updates are batched behind a short debounce.
type IndexWriter struct {
	mu        sync.Mutex
	outputDir string
	path      string
	index     *Index

	queued   map[string]*FlowUpdate
	debounce *time.Timer
}

// NewIndexWriter creates a writer over an existing index.
func NewIndexWriter(outputDir string, index *Index) *IndexWriter {
	return &IndexWriter{
		outputDir: outputDir,
		path:      filepath.Join(outputDir, "report.json"),
		index:     index,
		queued:    make(map[string]*FlowUpdate),
	}
}

// Start marks the run as started.
func (w *IndexWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.index.Status = StatusRunning
	w.index.StartTime = time.Now()
	w.writeLocked()
}

// UpdateFlow queues an update for one flow entry. A terminal status flushes
// right away so a crash never loses a finished flow.
func (w *IndexWriter) UpdateFlow(flowID string, update *FlowUpdate) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.queued[flowID] = update

	if update.Status.IsTerminal() {
		w.writeLocked()
		return
	}

	if w.debounce == nil {
		w.debounce = time.AfterFunc(debounceInterval, w.write)
	}
}

// End marks the run as complete with a status derived from the flows.
func (w *IndexWriter) End() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.index.EndTime = &now
	w.index.Status = w.runStatusLocked()
	w.writeLocked()
}

// Close flushes anything still queued.
func (w *IndexWriter) Close() {
	w.write()
}

// GetIndex returns the current index (for reading).
func (w *IndexWriter) GetIndex() *Index {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.index
}

// write takes the lock and flushes.
func (w *IndexWriter) write() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writeLocked()
}

// writeLocked merges queued updates into the index and rewrites report.json
// and the HTML view. Callers hold the lock.
func (w *IndexWriter) writeLocked() {
	if w.debounce != nil {
		w.debounce.Stop()
		w.debounce = nil
	}

	for flowID, update := range w.queued {
		w.mergeLocked(flowID, update)
	}
	w.queued = make(map[string]*FlowUpdate)

	w.index.UpdateSeq++
	w.index.LastUpdated = time.Now()
	w.index.Summary = w.summaryLocked()

	atomicWriteJSON(w.path, w.index)

	// Keep the HTML view current for live file:// viewing
	GenerateHTML(w.outputDir, HTMLConfig{
		Title:     "Replay Report",
		ReportDir: w.outputDir,
	})
}

// mergeLocked applies one FlowUpdate to its index entry.
func (w *IndexWriter) mergeLocked(flowID string, update *FlowUpdate) {
	for i := range w.index.Flows {
		entry := &w.index.Flows[i]
		if entry.ID != flowID {
			continue
		}

		entry.Status = update.Status
		if update.StartTime != nil {
			entry.StartTime = update.StartTime
		}
		if update.EndTime != nil {
			entry.EndTime = update.EndTime
		}
		if update.Duration != nil {
			entry.Duration = update.Duration
		}
		entry.Commands = update.Commands
		if update.Error != nil {
			entry.Error = update.Error
		}

		entry.UpdateSeq++
		now := time.Now()
		entry.LastUpdated = &now
		return
	}
}

// summaryLocked tallies flow statuses.
func (w *IndexWriter) summaryLocked() Summary {
	var s Summary
	for _, f := range w.index.Flows {
		s.Total++
		switch f.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusRunning:
			s.Running++
		case StatusPending:
			s.Pending++
		}
	}
	return s
}

// runStatusLocked derives the overall run status. Any flow still pending or
// running keeps the run in the running state.
func (w *IndexWriter) runStatusLocked() Status {
	failed := false
	for _, f := range w.index.Flows {
		if !f.Status.IsTerminal() {
			return StatusRunning
		}
		if f.Status == StatusFailed {
			failed = true
		}
	}
	if failed {
		return StatusFailed
	}
	return StatusPassed
}
