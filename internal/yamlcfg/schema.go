package yamlcfg

import (
	"fmt"

	"github.com/vk/conveyor/internal/config"
	"gopkg.in/yaml.v3"
)

// rootDoc is the top-level YAML document.
type rootDoc struct {
	Pipeline *pipelineDoc `yaml:"pipeline"`
}

type pipelineDoc struct {
	Name        string          `yaml:"name"`
	On          *triggerDoc     `yaml:"on"`
	Concurrency *concurrencyDoc `yaml:"concurrency"`
	Jobs        []*jobDoc       `yaml:"jobs"`
}

type triggerDoc struct {
	Branches []string `yaml:"branches"`
	Schedule string   `yaml:"schedule"`
}

type concurrencyDoc struct {
	Group            string `yaml:"group"`
	CancelInProgress bool   `yaml:"cancel_in_progress"`
}

type jobDoc struct {
	Name   string     `yaml:"name"`
	Matrix *matrixDoc `yaml:"matrix"`
	Needs  []string   `yaml:"needs"`
	Cache  *cacheDoc  `yaml:"cache"`
	Steps  []*stepDoc `yaml:"steps"`
}

type cacheDoc struct {
	Key         string   `yaml:"key"`
	RestoreKeys []string `yaml:"restore_keys"`
	Paths       []string `yaml:"paths"`
}

type stepDoc struct {
	Name string `yaml:"name"`
	Run  string `yaml:"run"`
}

// matrixDoc preserves axis declaration order, which a plain map decode would
// lose. The expander's deterministic ordering depends on it.
type matrixDoc struct {
	axes []config.Axis
}

// UnmarshalYAML decodes the matrix mapping node directly so that keys are
// visited in document order.
func (m *matrixDoc) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("matrix must be a mapping of axis name to value list")
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		var values []string
		if err := valNode.Decode(&values); err != nil {
			return fmt.Errorf("matrix axis %q: %w", keyNode.Value, err)
		}
		m.axes = append(m.axes, config.Axis{Name: keyNode.Value, Values: values})
	}
	return nil
}

func (p *pipelineDoc) toModel() *config.Pipeline {
	out := &config.Pipeline{Name: p.Name}
	if p.On != nil {
		out.Trigger = &config.Trigger{Branches: p.On.Branches, Schedule: p.On.Schedule}
	}
	if p.Concurrency != nil {
		out.Concurrency = &config.Concurrency{
			Group:            p.Concurrency.Group,
			CancelInProgress: p.Concurrency.CancelInProgress,
		}
	}
	for _, j := range p.Jobs {
		job := &config.Job{Name: j.Name, Needs: j.Needs}
		if j.Matrix != nil {
			job.Matrix = &config.Matrix{Axes: j.Matrix.axes}
		}
		if j.Cache != nil {
			job.Cache = &config.Cache{
				Key:         j.Cache.Key,
				RestoreKeys: j.Cache.RestoreKeys,
				Paths:       j.Cache.Paths,
			}
		}
		for _, s := range j.Steps {
			job.Steps = append(job.Steps, &config.Step{Name: s.Name, Run: s.Run})
		}
		out.Jobs = append(out.Jobs, job)
	}
	return out
}
