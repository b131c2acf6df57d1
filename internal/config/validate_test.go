package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validModel() *Model {
	return &Model{
		Pipeline: &Pipeline{
			Name: "ci",
			Jobs: []*Job{
				{
					Name:  "build",
					Steps: []*Step{{Name: "compile", Run: "make build"}},
				},
				{
					Name:  "test",
					Steps: []*Step{{Run: "make test"}},
					Needs: []string{"build"},
					Matrix: &Matrix{Axes: []Axis{
						{Name: "os", Values: []string{"ubuntu-latest", "macos-latest"}},
					}},
					Cache: &Cache{
						Key:         "deps-${os}-${hash:go.sum}",
						RestoreKeys: []string{"deps-${os}-"},
						Paths:       []string{".cache"},
					},
				},
			},
		},
	}
}

func TestValidate_OK(t *testing.T) {
	t.Parallel()
	require.NoError(t, Validate(validModel()))
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Model)
		wantMsg string
	}{
		{
			name:    "nil pipeline",
			mutate:  func(m *Model) { m.Pipeline = nil },
			wantMsg: "no pipeline block",
		},
		{
			name:    "no jobs",
			mutate:  func(m *Model) { m.Pipeline.Jobs = nil },
			wantMsg: "declares no jobs",
		},
		{
			name:    "duplicate job name",
			mutate:  func(m *Model) { m.Pipeline.Jobs[1].Name = "build" },
			wantMsg: "duplicate job",
		},
		{
			name:    "no steps",
			mutate:  func(m *Model) { m.Pipeline.Jobs[0].Steps = nil },
			wantMsg: "has no steps",
		},
		{
			name:    "empty run command",
			mutate:  func(m *Model) { m.Pipeline.Jobs[0].Steps[0].Run = "" },
			wantMsg: "empty run command",
		},
		{
			name:    "unknown needs target",
			mutate:  func(m *Model) { m.Pipeline.Jobs[1].Needs = []string{"lint"} },
			wantMsg: "needs unknown job",
		},
		{
			name:    "self dependency",
			mutate:  func(m *Model) { m.Pipeline.Jobs[1].Needs = []string{"test"} },
			wantMsg: "needs itself",
		},
		{
			name:    "empty matrix axis",
			mutate:  func(m *Model) { m.Pipeline.Jobs[1].Matrix.Axes[0].Values = nil },
			wantMsg: "has no values",
		},
		{
			name: "duplicate matrix axis",
			mutate: func(m *Model) {
				ax := m.Pipeline.Jobs[1].Matrix.Axes[0]
				m.Pipeline.Jobs[1].Matrix.Axes = append(m.Pipeline.Jobs[1].Matrix.Axes, ax)
			},
			wantMsg: "duplicates matrix axis",
		},
		{
			name:    "cache without key",
			mutate:  func(m *Model) { m.Pipeline.Jobs[1].Cache.Key = "" },
			wantMsg: "cache without a primary key",
		},
		{
			name:    "cache without paths",
			mutate:  func(m *Model) { m.Pipeline.Jobs[1].Cache.Paths = nil },
			wantMsg: "cache without paths",
		},
		{
			name: "bad schedule",
			mutate: func(m *Model) {
				m.Pipeline.Trigger = &Trigger{Schedule: "not a cron expr"}
			},
			wantMsg: "bad schedule",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validModel()
			tt.mutate(m)
			err := Validate(m)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidSpec)
			assert.ErrorContains(t, err, tt.wantMsg)
		})
	}
}

func TestValidate_ScheduleAccepted(t *testing.T) {
	t.Parallel()
	m := validModel()
	m.Pipeline.Trigger = &Trigger{Branches: []string{"main"}, Schedule: "0 4 * * *"}
	assert.NoError(t, Validate(m))
}
