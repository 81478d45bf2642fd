package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/sitepulse/engine/model/task"
	"github.com/sitepulse/engine/model/types"
	"github.com/sitepulse/engine/service/event"
)

const smokePipeline = `
name: smoke
stages:
  - id: fetch
    kind: collector
    component: nop
  - id: parse
    kind: processor
    component: nop
    dependsOn: [fetch]
  - id: score
    kind: analyzer
    component: nop
    dependsOn: [parse]
`

func TestService_RunPipeline(t *testing.T) {
	svc, err := New(WithLogger(zerolog.Nop()))
	assert.NoError(t, err)
	runtime := svc.Runtime()
	assert.NotNil(t, runtime)

	p, err := runtime.DecodeYAMLPipeline([]byte(smokePipeline))
	assert.NoError(t, err)

	report, err := runtime.RunPipeline(context.Background(), p, "https://example.com")
	assert.NoError(t, err)
	assert.Empty(t, report.Errors)
	assert.Equal(t, 1, len(report.Analyses))
	assert.Equal(t, float64(100), report.Score())
}

func TestService_UpsertAndRun(t *testing.T) {
	svc, err := New(WithLogger(zerolog.Nop()))
	assert.NoError(t, err)
	runtime := svc.Runtime()

	location := "mem://localhost/pipelines/smoke.yaml"
	assert.NoError(t, runtime.UpsertDefinition(location, []byte(smokePipeline)))

	report, err := runtime.Run(context.Background(), location, "https://example.com")
	assert.NoError(t, err)
	assert.Empty(t, report.Errors)
	assert.Equal(t, float64(100), report.Score())

	assert.Error(t, runtime.UpsertDefinition(location, []byte("name: [")))
	// nil data only invalidates; a later load re-reads the source
	assert.NoError(t, runtime.UpsertDefinition(location, nil))
}

type fixedAnalyzer struct {
	score float64
}

func (a *fixedAnalyzer) Name() string { return "fixed" }

func (a *fixedAnalyzer) Analyze(_ context.Context, page *types.PageData, _ interface{}) (*types.Analysis, error) {
	if page == nil {
		return nil, types.NewInvalidInputError(page)
	}
	return &types.Analysis{Score: a.score}, nil
}

func TestService_WithComponent(t *testing.T) {
	svc, err := New(
		WithLogger(zerolog.Nop()),
		WithComponent(types.KindAnalyzer, &fixedAnalyzer{score: 42}),
	)
	assert.NoError(t, err)

	p, err := svc.Runtime().DecodeYAMLPipeline([]byte(`
name: custom
stages:
  - id: fetch
    kind: collector
    component: nop
  - id: parse
    kind: processor
    component: nop
    dependsOn: [fetch]
  - id: score
    kind: analyzer
    component: fixed
    dependsOn: [parse]
`))
	assert.NoError(t, err)

	report, err := svc.Runtime().RunPipeline(context.Background(), p, "https://example.com")
	assert.NoError(t, err)
	assert.Empty(t, report.Errors)
	assert.Equal(t, float64(42), report.Score())
	assert.Equal(t, "fixed", report.Analyses[0].Component)
}

func TestService_TaskEvents(t *testing.T) {
	svc, err := New(WithLogger(zerolog.Nop()))
	assert.NoError(t, err)

	received := make(chan *event.Event[task.Result], 8)
	assert.NoError(t, event.SetListenerOf[task.Result](svc.Events(), func(e *event.Event[task.Result]) {
		received <- e
	}))

	p, err := svc.Runtime().DecodeYAMLPipeline([]byte(smokePipeline))
	assert.NoError(t, err)
	_, err = svc.Runtime().RunPipeline(context.Background(), p, "https://example.com")
	assert.NoError(t, err)

	for i := 0; i < 3; i++ {
		select {
		case e := <-received:
			assert.Equal(t, "task.succeeded", e.Context.EventType)
			assert.Equal(t, task.StatusSucceeded, e.Data.Status)
		case <-time.After(time.Second):
			t.Fatal("missing task lifecycle event")
		}
	}
}

func TestService_InvalidConfig(t *testing.T) {
	_, err := New(WithConfig(&Config{Executor: ExecutorConfig{Workers: -1}}))
	assert.Error(t, err)

	_, err = New(WithConfig(&Config{
		Executor: ExecutorConfig{Workers: 2, Strategy: "roundRobin"},
	}))
	assert.Error(t, err)
}

func TestRuntime_StartShutdown(t *testing.T) {
	svc, err := New(WithLogger(zerolog.Nop()))
	assert.NoError(t, err)
	assert.NoError(t, svc.Runtime().Start(context.Background()))
	svc.Runtime().Shutdown()
}
