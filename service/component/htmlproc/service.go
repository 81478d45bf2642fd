// Package htmlproc turns a raw HTML response into structured page data:
// title, meta description, meta tags and outgoing links.
package htmlproc

import (
	"context"
	"html"
	"reflect"
	"regexp"
	"strings"

	"github.com/sitepulse/engine/model/types"
)

const name = "htmlproc"

var (
	titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	metaRe  = regexp.MustCompile(`(?is)<meta\s+[^>]*>`)
	nameRe  = regexp.MustCompile(`(?i)name\s*=\s*["']([^"']+)["']`)
	propRe  = regexp.MustCompile(`(?i)property\s*=\s*["']([^"']+)["']`)
	contRe  = regexp.MustCompile(`(?i)content\s*=\s*["']([^"']*)["']`)
	linkRe  = regexp.MustCompile(`(?is)<a\s+[^>]*href\s*=\s*["']([^"'#][^"']*)["']`)
)

// Config controls extraction.
type Config struct {
	// KeepHTML retains the raw markup on the page data.
	KeepHTML bool `json:"keepHtml,omitempty" yaml:"keepHtml,omitempty"`
	// MaxLinks caps extracted links; 0 means all.
	MaxLinks int `json:"maxLinks,omitempty" yaml:"maxLinks,omitempty"`
}

// Service extracts page structure from raw HTML.
type Service struct{}

// New creates the processor.
func New() *Service {
	return &Service{}
}

// Name returns the component name.
func (s *Service) Name() string {
	return name
}

// ConfigType returns the typed config for this component.
func (s *Service) ConfigType() reflect.Type {
	return reflect.TypeOf(&Config{})
}

// Process extracts title, meta tags and links from the raw body.
func (s *Service) Process(_ context.Context, raw *types.RawData, config interface{}) (*types.PageData, error) {
	if raw == nil {
		return nil, types.NewInvalidInputError(raw)
	}
	cfg, _ := config.(*Config)
	if cfg == nil {
		cfg = &Config{}
	}
	markup := string(raw.Body)
	page := &types.PageData{
		Target:     raw.Target,
		StatusCode: raw.StatusCode,
		Headers:    raw.Headers,
		Meta:       map[string]string{},
	}
	if match := titleRe.FindStringSubmatch(markup); len(match) > 1 {
		page.Title = strings.TrimSpace(html.UnescapeString(match[1]))
	}
	for _, tag := range metaRe.FindAllString(markup, -1) {
		key := ""
		if match := nameRe.FindStringSubmatch(tag); len(match) > 1 {
			key = strings.ToLower(match[1])
		} else if match := propRe.FindStringSubmatch(tag); len(match) > 1 {
			key = strings.ToLower(match[1])
		}
		if key == "" {
			continue
		}
		content := ""
		if match := contRe.FindStringSubmatch(tag); len(match) > 1 {
			content = html.UnescapeString(match[1])
		}
		page.Meta[key] = content
		if key == "description" {
			page.Description = strings.TrimSpace(content)
		}
	}
	seen := map[string]bool{}
	for _, match := range linkRe.FindAllStringSubmatch(markup, -1) {
		href := strings.TrimSpace(match[1])
		if href == "" || seen[href] {
			continue
		}
		seen[href] = true
		page.Links = append(page.Links, href)
		if cfg.MaxLinks > 0 && len(page.Links) >= cfg.MaxLinks {
			break
		}
	}
	if cfg.KeepHTML {
		page.HTML = markup
	}
	return page, nil
}
