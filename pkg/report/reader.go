package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ReadReport loads the index and all flow detail files from a report
// directory. Missing flow detail files are skipped rather than failing the
// whole read, so a report can be rendered mid-run.
func ReadReport(reportDir string) (*Index, []FlowDetail, error) {
	indexPath := filepath.Join(reportDir, "report.json")
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read index: %w", err)
	}

	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, nil, fmt.Errorf("parse index: %w", err)
	}

	flows := make([]FlowDetail, 0, len(index.Flows))
	for _, entry := range index.Flows {
		flowPath := filepath.Join(reportDir, entry.DataFile)
		flowData, err := os.ReadFile(flowPath)
		if err != nil {
			continue
		}

		var detail FlowDetail
		if err := json.Unmarshal(flowData, &detail); err != nil {
			return nil, nil, fmt.Errorf("parse flow %s: %w", entry.ID, err)
		}
		flows = append(flows, detail)
	}

	return &index, flows, nil
}
