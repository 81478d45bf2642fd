package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"

	"github.com/sitepulse/engine/model/types"
)

func validPipeline() *Pipeline {
	p := New("seo-audit")
	p.AddStage("fetch", types.KindCollector, "fetch")
	p.AddStage("parse", types.KindProcessor, "htmlproc").WithDependsOn("fetch")
	p.AddStage("meta", types.KindAnalyzer, "seometa").WithDependsOn("parse").WithCacheTTL("10m")
	return p
}

func TestPipeline_Validate(t *testing.T) {
	assert.NoError(t, validPipeline().Validate())

	testCases := []struct {
		description string
		mutate      func(p *Pipeline)
	}{
		{
			description: "missing name",
			mutate:      func(p *Pipeline) { p.Name = "" },
		},
		{
			description: "no stages",
			mutate:      func(p *Pipeline) { p.Stages = nil },
		},
		{
			description: "duplicate stage id",
			mutate:      func(p *Pipeline) { p.AddStage("fetch", types.KindCollector, "fetch") },
		},
		{
			description: "unknown kind",
			mutate:      func(p *Pipeline) { p.Stages[0].Kind = "mystery" },
		},
		{
			description: "missing component",
			mutate:      func(p *Pipeline) { p.Stages[0].Component = "" },
		},
		{
			description: "unknown dependency",
			mutate:      func(p *Pipeline) { p.Stages[1].DependsOn = []string{"nope"} },
		},
		{
			description: "bad timeout",
			mutate:      func(p *Pipeline) { p.Stages[0].Timeout = "soon" },
		},
		{
			description: "bad cache ttl",
			mutate:      func(p *Pipeline) { p.Stages[2].CacheTTL = "forever" },
		},
	}
	for _, testCase := range testCases {
		p := validPipeline()
		testCase.mutate(p)
		assert.Error(t, p.Validate(), testCase.description)
	}
}

func TestPipeline_YAML(t *testing.T) {
	definition := []byte(`
name: seo-audit
stages:
  - id: fetch
    kind: collector
    component: fetch
    timeout: 30s
  - id: parse
    kind: processor
    component: htmlproc
    dependsOn: [fetch]
  - id: meta
    kind: analyzer
    component: seometa
    dependsOn: [parse]
    priority: 9
    cacheTtl: 10m
`)
	p := &Pipeline{}
	assert.NoError(t, yaml.Unmarshal(definition, p))
	assert.NoError(t, p.Validate())
	assert.Equal(t, "seo-audit", p.Name)
	assert.Equal(t, 3, len(p.Stages))

	meta := p.Stage("meta")
	assert.NotNil(t, meta)
	assert.Equal(t, types.KindAnalyzer, meta.Kind)
	assert.Equal(t, 9, meta.Priority)
	ttl, err := meta.CacheTTLDuration()
	assert.NoError(t, err)
	assert.Equal(t, 10*time.Minute, ttl)

	timeout, err := p.Stage("fetch").TimeoutDuration()
	assert.NoError(t, err)
	assert.Equal(t, 30*time.Second, timeout)
}
