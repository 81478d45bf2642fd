// Package policy provides an optional per-component approval layer attached
// to a pipeline run via context. It is opt-in: runs that do not embed a
// Policy in their context execute every component automatically.
package policy

import (
	"context"
	"strings"
)

// Execution modes recognised by the pipeline service.
const (
	ModeAuto = "auto" // execute automatically (default)
	ModeDeny = "deny" // block execution
)

// Policy filters which components a pipeline run may execute. A nil *Policy
// means "execute everything" and is the zero-cost default.
//
// AllowList and BlockList match the fully qualified component name
// "kind.component" (for example "analyzer.seometa"), case-insensitive.
type Policy struct {
	Mode      string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	AllowList []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	BlockList []string `json:"block,omitempty" yaml:"block,omitempty"`
}

// IsAllowed evaluates AllowList / BlockList for the given component name.
// BlockList has priority; an empty AllowList allows everything.
func (p *Policy) IsAllowed(component string) bool {
	if p == nil {
		return true
	}
	if p.Mode == ModeDeny {
		return false
	}
	normalized := strings.ToLower(component)
	for _, b := range p.BlockList {
		if normalized == strings.ToLower(b) {
			return false
		}
	}
	if len(p.AllowList) == 0 {
		return true
	}
	for _, a := range p.AllowList {
		if normalized == strings.ToLower(a) {
			return true
		}
	}
	return false
}

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds policy in ctx.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext extracts the policy, or nil.
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Policy); ok {
		return v
	}
	return nil
}
