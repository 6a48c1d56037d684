package taskdataset

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sweagent/sweenv/pkg/types"
)

// LocalJSONLSource reads tasks from a local file, one JSON object per line,
// in the shape common to SWE-bench style datasets. Blank lines are
// skipped; a malformed line fails the whole load rather than being
// silently dropped, since a bad record usually means the wrong file was
// pointed at.
type LocalJSONLSource struct {
	path string
}

// NewLocalJSONLSource returns a Source reading tasks from path.
func NewLocalJSONLSource(path string) *LocalJSONLSource {
	return &LocalJSONLSource{path: path}
}

// jsonlRecord mirrors the field names SWE-bench datasets use on disk,
// which differ from types.Task's Go-idiomatic names.
type jsonlRecord struct {
	InstanceID           string `json:"instance_id"`
	Repo                 string `json:"repo"`
	BaseCommit           string `json:"base_commit"`
	ProblemStatement     string `json:"problem_statement"`
	TestPatch            string `json:"test_patch"`
	Version              string `json:"version"`
	EnvironmentSetupCmd  string `json:"environment_setup_commit"`
	EnvActivationCommand string `json:"env_activation_command"`
}

func (r jsonlRecord) toTask() types.Task {
	activation := r.EnvActivationCommand
	if activation == "" {
		activation = r.EnvironmentSetupCmd
	}
	return types.Task{
		InstanceID:           r.InstanceID,
		RepoSlug:             r.Repo,
		BaseCommit:           r.BaseCommit,
		ProblemStatement:     r.ProblemStatement,
		TestPatch:            r.TestPatch,
		Version:              r.Version,
		EnvActivationCommand: activation,
	}
}

// Load reads and parses every line of the file. It ignores ctx cancellation
// mid-scan since a local read is never long enough to need it, but accepts
// the parameter to satisfy Source and to fail fast if ctx is already done.
func (s *LocalJSONLSource) Load(ctx context.Context) ([]types.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("taskdataset: open %s: %w", s.path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var tasks []types.Task
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec jsonlRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("taskdataset: %s line %d: %w", s.path, lineNo, err)
		}
		if rec.InstanceID == "" {
			return nil, fmt.Errorf("taskdataset: %s line %d: missing instance_id", s.path, lineNo)
		}
		tasks = append(tasks, rec.toTask())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("taskdataset: read %s: %w", s.path, err)
	}
	return tasks, nil
}
