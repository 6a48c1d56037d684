package taskdataset

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sweagent/sweenv/pkg/types"
)

// manifest mirrors the apiVersion/kind/metadata/spec shape of a single
// declarative resource, for a hand-written task describing one episode
// without assembling a whole JSONL dataset around it.
type manifest struct {
	APIVersion string           `yaml:"apiVersion"`
	Kind       string           `yaml:"kind"`
	Metadata   manifestMeta     `yaml:"metadata"`
	Spec       manifestTaskSpec `yaml:"spec"`
}

type manifestMeta struct {
	Name string `yaml:"name"`
}

type manifestTaskSpec struct {
	Repo                 string `yaml:"repo"`
	BaseCommit           string `yaml:"baseCommit"`
	ProblemStatement     string `yaml:"problemStatement"`
	TestPatch            string `yaml:"testPatch"`
	Version              string `yaml:"version"`
	EnvActivationCommand string `yaml:"envActivationCommand"`
}

// YAMLManifestSource reads a single task from a one-off YAML manifest file,
// in the same apiVersion/kind/metadata/spec shape as a warren resource
// manifest. It supplements LocalJSONLSource for the common case of running
// one hand-edited task without a full dataset file.
type YAMLManifestSource struct {
	path string
}

// NewYAMLManifestSource returns a Source reading the single task manifest at path.
func NewYAMLManifestSource(path string) *YAMLManifestSource {
	return &YAMLManifestSource{path: path}
}

// Load parses the manifest and returns its one task. It rejects a
// Kind other than "Task" so a service manifest pointed at by mistake
// fails loudly instead of producing a blank task.
func (s *YAMLManifestSource) Load(ctx context.Context) ([]types.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("taskdataset: open %s: %w", s.path, err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("taskdataset: parse %s: %w", s.path, err)
	}
	if m.Kind != "" && m.Kind != "Task" {
		return nil, fmt.Errorf("taskdataset: %s: unsupported kind %q, want Task", s.path, m.Kind)
	}
	if m.Metadata.Name == "" {
		return nil, fmt.Errorf("taskdataset: %s: metadata.name is required", s.path)
	}

	task := types.Task{
		InstanceID:           m.Metadata.Name,
		RepoSlug:             m.Spec.Repo,
		BaseCommit:           m.Spec.BaseCommit,
		ProblemStatement:     m.Spec.ProblemStatement,
		TestPatch:            m.Spec.TestPatch,
		Version:              m.Spec.Version,
		EnvActivationCommand: m.Spec.EnvActivationCommand,
	}
	return []types.Task{task}, nil
}
