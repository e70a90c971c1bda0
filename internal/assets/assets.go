// Package assets validates uploaded asset metadata and mints the
// size-bounded references tasks carry. Tasks never hold raw bytes; the
// binary itself lives wherever Location points.
package assets

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/lcollado/adforge/internal/domain"
)

// Config bounds what the service accepts.
type Config struct {
	// MaxSizeBytes caps a single asset. Zero means 25 MiB.
	MaxSizeBytes int64

	// AllowedContentTypes is the accepted MIME type whitelist. Empty
	// means the image defaults.
	AllowedContentTypes []string
}

// DefaultConfig returns the standard limits for product imagery.
func DefaultConfig() Config {
	return Config{
		MaxSizeBytes:        25 << 20,
		AllowedContentTypes: []string{"image/png", "image/jpeg", "image/webp"},
	}
}

// Service mints validated asset references.
type Service struct {
	cfg     Config
	allowed map[string]struct{}
}

// NewService creates a Service, applying defaults for unset config
// values.
func NewService(cfg Config) *Service {
	def := DefaultConfig()
	if cfg.MaxSizeBytes <= 0 {
		cfg.MaxSizeBytes = def.MaxSizeBytes
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = def.AllowedContentTypes
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedContentTypes))
	for _, ct := range cfg.AllowedContentTypes {
		allowed[strings.ToLower(ct)] = struct{}{}
	}
	return &Service{cfg: cfg, allowed: allowed}
}

// Input is the caller-supplied asset metadata.
type Input struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	Location    string `json:"location"`
}

// Validate checks one asset's metadata and returns its reference.
func (s *Service) Validate(in Input) (domain.AssetRef, error) {
	if in.Name == "" {
		return domain.AssetRef{}, fmt.Errorf("%w: asset name is required", domain.ErrValidation)
	}
	if in.SizeBytes <= 0 {
		return domain.AssetRef{}, fmt.Errorf("%w: asset %s has no size", domain.ErrValidation, in.Name)
	}
	if in.SizeBytes > s.cfg.MaxSizeBytes {
		return domain.AssetRef{}, fmt.Errorf("%w: asset %s is %d bytes, limit is %d",
			domain.ErrValidation, in.Name, in.SizeBytes, s.cfg.MaxSizeBytes)
	}
	if _, ok := s.allowed[strings.ToLower(in.ContentType)]; !ok {
		return domain.AssetRef{}, fmt.Errorf("%w: content type %q is not accepted", domain.ErrValidation, in.ContentType)
	}
	if err := validateLocation(in.Location); err != nil {
		return domain.AssetRef{}, err
	}

	return domain.AssetRef{
		ID:          uuid.New(),
		Name:        in.Name,
		ContentType: strings.ToLower(in.ContentType),
		SizeBytes:   in.SizeBytes,
		Location:    in.Location,
	}, nil
}

// ValidateAll validates a batch, failing on the first bad asset.
func (s *Service) ValidateAll(ins []Input) ([]domain.AssetRef, error) {
	refs := make([]domain.AssetRef, 0, len(ins))
	for _, in := range ins {
		ref, err := s.Validate(in)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func validateLocation(location string) error {
	if location == "" {
		return fmt.Errorf("%w: asset location is required", domain.ErrValidation)
	}
	u, err := url.Parse(location)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: asset location must be an http(s) URL", domain.ErrValidation)
	}
	return nil
}
