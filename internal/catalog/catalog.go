// Package catalog resolves marketing templates into generation request
// payloads. The orchestrator treats the resolved payload as opaque; all
// template knowledge lives here.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lcollado/adforge/internal/domain"
)

// ErrTemplateNotFound is returned when no template matches the
// requested ID.
var ErrTemplateNotFound = errors.New("template not found")

// Template describes one marketing asset template.
type Template struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	ProviderID  string          `json:"provider_id"`
	Keywords    []string        `json:"keywords,omitempty"`
	MinAssets   int             `json:"min_assets"`
	MaxAssets   int             `json:"max_assets"`
	Defaults    json.RawMessage `json:"defaults,omitempty"`
}

// Catalog is the template lookup contract consumed by the API layer.
type Catalog interface {
	// Resolve validates the assets against the template's constraints and
	// builds the provider-bound request payload. Returns the provider ID
	// the template targets alongside the payload.
	Resolve(ctx context.Context, templateID string, assets []domain.AssetRef, overrides json.RawMessage) (string, domain.GenerationRequest, error)

	// Get returns one template by ID.
	Get(ctx context.Context, templateID string) (Template, error)

	// Search returns templates matching the query, best match first. An
	// empty query returns every template.
	Search(ctx context.Context, query string) ([]Template, error)
}

// buildRequest merges template defaults with caller overrides. Override
// keys win over defaults.
func buildRequest(tpl Template, assets []domain.AssetRef, overrides json.RawMessage) (domain.GenerationRequest, error) {
	params := tpl.Defaults
	if len(overrides) > 0 {
		merged, err := mergeParams(tpl.Defaults, overrides)
		if err != nil {
			return domain.GenerationRequest{}, err
		}
		params = merged
	}
	return domain.GenerationRequest{
		TemplateID: tpl.ID,
		Assets:     assets,
		Params:     params,
	}, nil
}

func mergeParams(defaults, overrides json.RawMessage) (json.RawMessage, error) {
	out := map[string]json.RawMessage{}
	if len(defaults) > 0 {
		if err := json.Unmarshal(defaults, &out); err != nil {
			return nil, fmt.Errorf("%w: template defaults are not an object: %v", domain.ErrValidation, err)
		}
	}
	var over map[string]json.RawMessage
	if err := json.Unmarshal(overrides, &over); err != nil {
		return nil, fmt.Errorf("%w: params must be a JSON object: %v", domain.ErrValidation, err)
	}
	for k, v := range over {
		out[k] = v
	}
	return json.Marshal(out)
}

func validateAssets(tpl Template, assets []domain.AssetRef) error {
	if len(assets) < tpl.MinAssets {
		return fmt.Errorf("%w: template %s requires at least %d assets, got %d",
			domain.ErrValidation, tpl.ID, tpl.MinAssets, len(assets))
	}
	if tpl.MaxAssets > 0 && len(assets) > tpl.MaxAssets {
		return fmt.Errorf("%w: template %s accepts at most %d assets, got %d",
			domain.ErrValidation, tpl.ID, tpl.MaxAssets, len(assets))
	}
	return nil
}
