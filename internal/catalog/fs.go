package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/lcollado/adforge/internal/domain"
)

// FSCatalog serves templates from JSON files in a directory, loaded
// once at startup. A restart picks up template changes.
type FSCatalog struct {
	mu        sync.RWMutex
	templates map[string]Template
	logger    *slog.Logger
}

// NewFSCatalog loads every *.json file under dir as one template.
func NewFSCatalog(dir string, logger *slog.Logger) (*FSCatalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read template directory: %w", err)
	}

	c := &FSCatalog{
		templates: make(map[string]Template),
		logger:    logger.With("component", "catalog"),
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read template file %s: %w", path, err)
		}
		var tpl Template
		if err := json.Unmarshal(data, &tpl); err != nil {
			return nil, fmt.Errorf("failed to parse template file %s: %w", path, err)
		}
		if tpl.ID == "" || tpl.ProviderID == "" {
			return nil, fmt.Errorf("template file %s is missing id or provider_id", path)
		}
		if _, dup := c.templates[tpl.ID]; dup {
			return nil, fmt.Errorf("duplicate template ID %q in %s", tpl.ID, path)
		}
		c.templates[tpl.ID] = tpl
	}

	c.logger.Info("template catalog loaded", "templates", len(c.templates))
	return c, nil
}

// Get implements Catalog.
func (c *FSCatalog) Get(_ context.Context, templateID string) (Template, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tpl, ok := c.templates[templateID]
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", ErrTemplateNotFound, templateID)
	}
	return tpl, nil
}

// Resolve implements Catalog.
func (c *FSCatalog) Resolve(ctx context.Context, templateID string, assets []domain.AssetRef, overrides json.RawMessage) (string, domain.GenerationRequest, error) {
	tpl, err := c.Get(ctx, templateID)
	if err != nil {
		return "", domain.GenerationRequest{}, err
	}
	if err := validateAssets(tpl, assets); err != nil {
		return "", domain.GenerationRequest{}, err
	}
	req, err := buildRequest(tpl, assets, overrides)
	if err != nil {
		return "", domain.GenerationRequest{}, err
	}
	return tpl.ProviderID, req, nil
}

// Search implements Catalog. Relevance is the number of query terms
// matching the template's name, description or keywords.
func (c *FSCatalog) Search(_ context.Context, query string) ([]Template, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(query))

	type scored struct {
		tpl   Template
		score int
	}
	var matches []scored
	for _, tpl := range c.templates {
		score := relevance(tpl, terms)
		if len(terms) == 0 || score > 0 {
			matches = append(matches, scored{tpl: tpl, score: score})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].tpl.ID < matches[j].tpl.ID
	})

	out := make([]Template, len(matches))
	for i, m := range matches {
		out[i] = m.tpl
	}
	return out, nil
}

func relevance(tpl Template, terms []string) int {
	haystack := strings.ToLower(tpl.Name + " " + tpl.Description + " " + strings.Join(tpl.Keywords, " "))
	score := 0
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			score++
		}
	}
	return score
}
