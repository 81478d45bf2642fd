package extension

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sitepulse/engine/model/types"
)

type echoConfig struct {
	Score float64 `json:"score"`
}

type echoAnalyzer struct{}

func (a *echoAnalyzer) Name() string { return "echo" }

func (a *echoAnalyzer) ConfigType() reflect.Type { return reflect.TypeOf(&echoConfig{}) }

func (a *echoAnalyzer) Analyze(_ context.Context, _ *types.PageData, config interface{}) (*types.Analysis, error) {
	analysis := &types.Analysis{Component: "echo"}
	if cfg, ok := config.(*echoConfig); ok {
		analysis.Score = cfg.Score
	}
	return analysis, nil
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	registry.Register(types.KindAnalyzer, &echoAnalyzer{})

	component, err := registry.Lookup(types.KindAnalyzer, "echo")
	assert.NoError(t, err)
	assert.Equal(t, "echo", component.Name())

	analyzer, err := registry.Analyzer("echo")
	assert.NoError(t, err)
	assert.Equal(t, "echo", analyzer.Name())

	_, err = registry.Lookup(types.KindAnalyzer, "missing")
	assert.Error(t, err)
	_, err = registry.Collector("echo")
	assert.Error(t, err)
	assert.NotNil(t, registry.Types())
}

func TestRegistry_Names(t *testing.T) {
	registry := NewRegistry()
	registry.Register(types.KindAnalyzer, &echoAnalyzer{})
	assert.Equal(t, []string{"echo"}, registry.Names(types.KindAnalyzer))
	assert.Empty(t, registry.Names(types.KindReporter))
}
