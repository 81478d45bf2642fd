// Package engine provides a dependency-aware parallel task executor with
// memory-pressure limiting and a TTL/LRU cache layer, assembled into a
// collector, processor, analyzer and reporter pipeline for page analysis.
//
// The minimal setup runs a pipeline defined in YAML against a target URL:
//
//	svc, err := engine.New()
//	if err != nil { ... }
//	report, err := svc.Runtime().Run(ctx, "file:///pipelines/seo.yaml", "https://example.com")
package engine
