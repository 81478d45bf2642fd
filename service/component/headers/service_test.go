package headers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sitepulse/engine/model/types"
)

func TestService_Analyze(t *testing.T) {
	svc := New()

	fullySecured := &types.PageData{Headers: map[string][]string{
		"Strict-Transport-Security": {"max-age=63072000"},
		"Content-Security-Policy":   {"default-src 'self'"},
		"X-Content-Type-Options":    {"nosniff"},
		"X-Frame-Options":           {"DENY"},
		"Referrer-Policy":           {"no-referrer"},
	}}
	analysis, err := svc.Analyze(context.Background(), fullySecured, nil)
	assert.NoError(t, err)
	assert.Equal(t, float64(100), analysis.Score)
	assert.Empty(t, analysis.Findings)

	bare := &types.PageData{Headers: map[string][]string{}}
	analysis, err = svc.Analyze(context.Background(), bare, nil)
	assert.NoError(t, err)
	assert.Equal(t, float64(0), analysis.Score)
	assert.Equal(t, 5, len(analysis.Findings))
}

func TestService_AnalyzePartial(t *testing.T) {
	svc := New()
	page := &types.PageData{Headers: map[string][]string{
		"Strict-Transport-Security": {"max-age=63072000"},
		"Content-Security-Policy":   {"default-src 'self'"},
	}}
	analysis, err := svc.Analyze(context.Background(), page, nil)
	assert.NoError(t, err)
	assert.Equal(t, float64(50), analysis.Score)
	assert.Equal(t, 3, len(analysis.Findings))
}

func TestService_AnalyzeSkip(t *testing.T) {
	svc := New()
	page := &types.PageData{Headers: map[string][]string{
		"Strict-Transport-Security": {"max-age=63072000"},
		"Content-Security-Policy":   {"default-src 'self'"},
		"X-Content-Type-Options":    {"nosniff"},
		"X-Frame-Options":           {"DENY"},
	}}
	analysis, err := svc.Analyze(context.Background(), page, &Config{Skip: []string{"referrer-policy"}})
	assert.NoError(t, err)
	assert.Equal(t, float64(100), analysis.Score)
}

func TestService_AnalyzeNilInput(t *testing.T) {
	_, err := New().Analyze(context.Background(), nil, nil)
	assert.Error(t, err)
}
