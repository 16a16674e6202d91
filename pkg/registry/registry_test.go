package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *ActivityRegistry {
	return &ActivityRegistry{
		Version: "1",
		Activities: []Activity{
			{ID: "process-command", TaskType: "process-command", Timeout: "30s"},
			{ID: "extract-command", TaskType: "extract-command"},
		},
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity-registry.json")
	require.NoError(t, sample().Save(path))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	require.Len(t, reg.Activities, 2)
	assert.Equal(t, "extract-command", reg.Activities[0].ID)
	assert.NotEmpty(t, reg.LastUpdated)
	assert.NoError(t, reg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *ActivityRegistry)
	}{
		{"missing task type", func(r *ActivityRegistry) { r.Activities[0].TaskType = "" }},
		{"duplicate id", func(r *ActivityRegistry) { r.Activities[1].ID = "process-command" }},
		{"duplicate task type", func(r *ActivityRegistry) { r.Activities[1].TaskType = "process-command" }},
		{"bad timeout", func(r *ActivityRegistry) { r.Activities[0].Timeout = "soon" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := sample()
			tt.mutate(r)
			assert.Error(t, r.Validate())
		})
	}
}

func TestMissing(t *testing.T) {
	have := &ActivityRegistry{Activities: []Activity{{ID: "process-command", TaskType: "process-command"}}}
	assert.Equal(t, []string{"extract-command"}, have.Missing(sample()))
	assert.Empty(t, sample().Missing(have))
}
