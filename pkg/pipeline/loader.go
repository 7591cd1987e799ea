package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/inferd-ai/inferd-go/pkg/models"
)

// pipelineFile is the on-disk shape of a pipeline definition file. Custom
// steps are not expressible in YAML; they can only be registered through
// Create.
type pipelineFile struct {
	Pipelines []pipelineSpec `yaml:"pipelines"`
}

type pipelineSpec struct {
	ID    string                `yaml:"id"`
	Steps []models.PipelineStep `yaml:"steps"`
}

// LoadFile creates every pipeline declared in a YAML definition file and
// returns their ids. Creation stops at the first invalid declaration.
func (s *Service) LoadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}

	var file pipelineFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline file %s: %w", path, err)
	}
	if len(file.Pipelines) == 0 {
		return nil, fmt.Errorf("pipeline file %s declares no pipelines", path)
	}

	ids := make([]string, 0, len(file.Pipelines))
	for _, spec := range file.Pipelines {
		if _, err := s.Create(spec.ID, spec.Steps); err != nil {
			return ids, fmt.Errorf("pipeline %q: %w", spec.ID, err)
		}
		ids = append(ids, spec.ID)
	}
	return ids, nil
}
