package seometa

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sitepulse/engine/model/types"
)

func TestService_Analyze(t *testing.T) {
	svc := New()
	testCases := []struct {
		description string
		page        *types.PageData
		expected    []string // expected finding ids
	}{
		{
			description: "healthy page",
			page: &types.PageData{
				Title:       "SitePulse, continuous page monitoring",
				Description: strings.Repeat("Monitor your pages. ", 4),
			},
			expected: nil,
		},
		{
			description: "missing everything",
			page:        &types.PageData{},
			expected:    []string{"missing-title", "missing-description"},
		},
		{
			description: "short title",
			page: &types.PageData{
				Title:       "Short",
				Description: strings.Repeat("Monitor your pages. ", 4),
			},
			expected: []string{"short-title"},
		},
		{
			description: "long title and long description",
			page: &types.PageData{
				Title:       strings.Repeat("words ", 20),
				Description: strings.Repeat("description ", 30),
			},
			expected: []string{"long-title", "long-description"},
		},
	}
	for _, testCase := range testCases {
		analysis, err := svc.Analyze(context.Background(), testCase.page, nil)
		assert.NoError(t, err, testCase.description)
		var ids []string
		for _, finding := range analysis.Findings {
			ids = append(ids, finding.ID)
		}
		assert.Equal(t, testCase.expected, ids, testCase.description)
		if len(testCase.expected) == 0 {
			assert.Equal(t, float64(100), analysis.Score, testCase.description)
		} else {
			assert.Less(t, analysis.Score, float64(100), testCase.description)
		}
	}
}

func TestService_AnalyzeCustomBounds(t *testing.T) {
	svc := New()
	page := &types.PageData{Title: "Tiny", Description: "Also tiny"}
	analysis, err := svc.Analyze(context.Background(), page, &Config{
		MinTitle:       1,
		MinDescription: 1,
	})
	assert.NoError(t, err)
	assert.Empty(t, analysis.Findings)
	assert.Equal(t, float64(100), analysis.Score)
}

func TestService_AnalyzeNilInput(t *testing.T) {
	_, err := New().Analyze(context.Background(), nil, nil)
	assert.Error(t, err)
}
