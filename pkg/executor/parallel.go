package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/recorder-dev/recorder-runner/pkg/core"
	"github.com/recorder-dev/recorder-runner/pkg/flow"
	"github.com/recorder-dev/recorder-runner/pkg/report"
)

// PageWorker is one browser session that pulls flows from the shared queue.
type PageWorker struct {
	ID      int
	Driver  core.Driver
	Cleanup func()
}

// workItem represents a flow and its index in the original flow list.
type workItem struct {
	flow  flow.Flow
	index int
}

// ParallelRunner coordinates parallel replay across multiple browser sessions.
type ParallelRunner struct {
	workers []PageWorker
	config  RunnerConfig
}

// NewParallelRunner creates a parallel runner with multiple page workers.
func NewParallelRunner(workers []PageWorker, config RunnerConfig) *ParallelRunner {
	return &ParallelRunner{
		workers: workers,
		config:  config,
	}
}

// Run executes flows in parallel using a work queue pattern.
// All workers pull from the same queue until all flows are complete.
func (pr *ParallelRunner) Run(ctx context.Context, flows []flow.Flow) (*RunResult, error) {
	if len(pr.workers) == 0 {
		return nil, fmt.Errorf("no workers available")
	}

	// Build shared report skeleton
	builderCfg := report.BuilderConfig{
		OutputDir:     pr.config.OutputDir,
		Browser:       pr.config.Browser,
		BaseURL:       pr.config.BaseURL,
		CI:            pr.config.CI,
		RunnerVersion: pr.config.RunnerVersion,
		DriverName:    pr.config.DriverName,
	}

	index, flowDetails, err := report.BuildSkeleton(flows, builderCfg)
	if err != nil {
		return nil, err
	}

	// Write initial skeleton to disk
	if err := report.WriteSkeleton(pr.config.OutputDir, index, flowDetails); err != nil {
		return nil, err
	}

	// Create index writer for coordinated updates
	indexWriter := report.NewIndexWriter(pr.config.OutputDir, index)
	defer indexWriter.Close()

	// Mark run as started and track wall clock time
	indexWriter.Start()
	startTime := time.Now()

	// Create work queue with flow indices
	workQueue := make(chan workItem, len(flows))
	for i, f := range flows {
		workQueue <- workItem{flow: f, index: i}
	}
	close(workQueue)

	// Results collection
	results := make([]FlowResult, len(flows))
	var resultsMu sync.Mutex
	var wg sync.WaitGroup

	totalFlows := len(flows)

	// Start workers
	for i := range pr.workers {
		wg.Add(1)
		worker := pr.workers[i]

		go func(w PageWorker) {
			defer wg.Done()
			if w.Cleanup != nil {
				defer w.Cleanup()
			}

			// Each worker uses its own driver but shares the report
			runner := &Runner{
				config: pr.config,
				driver: w.Driver,
			}

			// Process flows from queue
			for item := range workQueue {
				result := runner.executeFlow(ctx, item.flow, &flowDetails[item.index], indexWriter, item.index, totalFlows)

				resultsMu.Lock()
				results[item.index] = result
				resultsMu.Unlock()
			}
		}(worker)
	}

	// Wait for all workers to complete
	wg.Wait()

	// Parallel runs report wall clock time, not the sum of flow durations
	wallClockDuration := time.Since(startTime).Milliseconds()

	// Mark run as complete
	indexWriter.End()

	return buildRunResult(results, index.RunID, wallClockDuration), nil
}
