package types

import (
	"context"
	"reflect"
)

// Kind identifies the pipeline role of a component.
type Kind string

const (
	KindCollector Kind = "collector"
	KindProcessor Kind = "processor"
	KindAnalyzer  Kind = "analyzer"
	KindReporter  Kind = "reporter"
)

// Component is the minimal contract every pipeline component satisfies.
type Component interface {
	Name() string
}

// Configurable is implemented by components that accept a typed config
// struct; raw stage config maps are converted into this type before a call.
type Configurable interface {
	ConfigType() reflect.Type
}

// Collector fetches raw data (HTML, headers) from a target.
type Collector interface {
	Component
	Collect(ctx context.Context, target string, config interface{}) (*RawData, error)
}

// Processor transforms raw collected data into structured page data.
type Processor interface {
	Component
	Process(ctx context.Context, raw *RawData, config interface{}) (*PageData, error)
}

// Analyzer inspects processed page data and emits findings plus a score.
type Analyzer interface {
	Component
	Analyze(ctx context.Context, page *PageData, config interface{}) (*Analysis, error)
}

// Reporter consumes an assembled report.
type Reporter interface {
	Component
	Report(ctx context.Context, report *Report, config interface{}) error
}
