package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_IsAllowed(t *testing.T) {
	testCases := []struct {
		description string
		policy      *Policy
		component   string
		expect      bool
	}{
		{
			description: "nil policy allows everything",
			component:   "analyzer.seometa",
			expect:      true,
		},
		{
			description: "deny mode blocks everything",
			policy:      &Policy{Mode: ModeDeny},
			component:   "analyzer.seometa",
			expect:      false,
		},
		{
			description: "block list wins over allow list",
			policy: &Policy{
				AllowList: []string{"analyzer.seometa"},
				BlockList: []string{"analyzer.seometa"},
			},
			component: "analyzer.seometa",
			expect:    false,
		},
		{
			description: "allow list restricts",
			policy:      &Policy{AllowList: []string{"collector.fetch"}},
			component:   "analyzer.seometa",
			expect:      false,
		},
		{
			description: "matching is case insensitive",
			policy:      &Policy{AllowList: []string{"Analyzer.SeoMeta"}},
			component:   "analyzer.seometa",
			expect:      true,
		},
		{
			description: "empty allow list allows",
			policy:      &Policy{BlockList: []string{"reporter.jsonreport"}},
			component:   "analyzer.seometa",
			expect:      true,
		},
	}
	for _, testCase := range testCases {
		actual := testCase.policy.IsAllowed(testCase.component)
		assert.Equal(t, testCase.expect, actual, testCase.description)
	}
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	assert.Nil(t, FromContext(nil))

	p := &Policy{Mode: ModeDeny}
	ctx := WithPolicy(context.Background(), p)
	assert.Equal(t, p, FromContext(ctx))
}
