package catalog

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcollado/adforge/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTemplate(t *testing.T, dir string, tpl Template) {
	t.Helper()
	data, err := json.Marshal(tpl)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, tpl.ID+".json"), data, 0o644))
}

func newTestCatalog(t *testing.T) *FSCatalog {
	t.Helper()
	dir := t.TempDir()

	writeTemplate(t, dir, Template{
		ID:          "tmpl-product-spin",
		Name:        "Product Spin",
		Description: "360 degree rotating product video",
		ProviderID:  "video-luma",
		Keywords:    []string{"video", "rotation"},
		MinAssets:   1,
		MaxAssets:   1,
		Defaults:    json.RawMessage(`{"duration":5,"style":"studio"}`),
	})
	writeTemplate(t, dir, Template{
		ID:          "tmpl-hero-banner",
		Name:        "Hero Banner",
		Description: "Static hero image composite",
		ProviderID:  "compositor",
		Keywords:    []string{"image", "banner"},
		MinAssets:   1,
		MaxAssets:   3,
	})

	c, err := NewFSCatalog(dir, testLogger())
	require.NoError(t, err)
	return c
}

func TestFSCatalog_ResolveMergesDefaultsAndOverrides(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)
	assets := []domain.AssetRef{{Name: "hero.png", Location: "https://assets.example.com/hero.png"}}

	providerID, req, err := c.Resolve(context.Background(), "tmpl-product-spin", assets, json.RawMessage(`{"duration":9}`))
	require.NoError(t, err)
	assert.Equal(t, "video-luma", providerID)
	assert.Equal(t, "tmpl-product-spin", req.TemplateID)
	assert.Equal(t, assets, req.Assets)

	var params map[string]any
	require.NoError(t, json.Unmarshal(req.Params, &params))
	assert.Equal(t, float64(9), params["duration"], "override wins over default")
	assert.Equal(t, "studio", params["style"], "untouched default survives")
}

func TestFSCatalog_ResolveValidatesAssetCount(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)

	_, _, err := c.Resolve(context.Background(), "tmpl-product-spin", nil, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	many := []domain.AssetRef{{Name: "a"}, {Name: "b"}}
	_, _, err = c.Resolve(context.Background(), "tmpl-product-spin", many, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestFSCatalog_UnknownTemplate(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)
	_, _, err := c.Resolve(context.Background(), "tmpl-nope", nil, nil)
	assert.ErrorIs(t, err, ErrTemplateNotFound)

	_, err = c.Get(context.Background(), "tmpl-nope")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestFSCatalog_SearchRanksByRelevance(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)

	results, err := c.Search(context.Background(), "rotating product video")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "tmpl-product-spin", results[0].ID)

	all, err := c.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := c.Search(context.Background(), "zebra")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFSCatalog_RejectsMalformedTemplates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"name":"no id"}`), 0o644))

	_, err := NewFSCatalog(dir, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing id or provider_id")
}
