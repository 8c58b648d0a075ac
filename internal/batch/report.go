package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// RunConfig is the configuration section of a run report
type RunConfig struct {
	Backend     string `yaml:"backend"`
	Model       string `yaml:"model"`
	Classifier  string `yaml:"classifier"`
	DatasetPath string `yaml:"datasetpath"`
	Format      string `yaml:"format"`
	Timestamp   string `yaml:"timestamp"`
}

// RunResult is the outcome of one dataset row
type RunResult struct {
	ID         string   `yaml:"id"`
	Prompt     string   `yaml:"prompt"`
	UsedPrompt string   `yaml:"usedprompt,omitempty"`
	Style      string   `yaml:"style,omitempty"`
	Enhanced   bool     `yaml:"enhanced"`
	Refined    bool     `yaml:"refined"`
	Images     []string `yaml:"images,omitempty"`
	DurationMS int64    `yaml:"durationms"`
	Code       string   `yaml:"code,omitempty"`
	Error      string   `yaml:"error,omitempty"`
}

// Summary counts outcomes across a run
type Summary struct {
	Total     int `yaml:"total"`
	Succeeded int `yaml:"succeeded"`
	Failed    int `yaml:"failed"`
	Images    int `yaml:"images"`
}

// Report is the complete record of a batch run
type Report struct {
	Config  RunConfig   `yaml:"config"`
	Summary Summary     `yaml:"summary"`
	Results []RunResult `yaml:"results"`
}

// Add appends result and updates the summary
func (r *Report) Add(result RunResult) {
	r.Results = append(r.Results, result)
	r.Summary.Total++
	if result.Error != "" {
		r.Summary.Failed++
		return
	}
	r.Summary.Succeeded++
	r.Summary.Images += len(result.Images)
}

// SaveToYAML writes the report to dir/<model>-<timestamp>.yaml and returns the path
func SaveToYAML(dir string, report *Report) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	if report.Config.Timestamp == "" {
		report.Config.Timestamp = time.Now().Format("2006-01-02_15-04-05")
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s-%s.yaml", filepath.Base(report.Config.Model), report.Config.Timestamp))

	data, err := yaml.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write YAML file: %w", err)
	}

	return filename, nil
}
