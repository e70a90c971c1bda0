package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcollado/adforge/internal/domain"
)

type fakeAdapter struct {
	id string
}

func (f *fakeAdapter) ID() string { return f.id }

func (f *fakeAdapter) Submit(ctx context.Context, req domain.GenerationRequest) (JobRef, error) {
	return "job-1", nil
}

func (f *fakeAdapter) Poll(ctx context.Context, ref JobRef) (Job, error) {
	return Job{Ref: ref, State: JobPending}, nil
}

func (f *fakeAdapter) Cancel(ctx context.Context, ref JobRef) error { return nil }

func TestRegistry_RegisterAndGet(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	luma := &fakeAdapter{id: "video-luma"}
	require.NoError(t, reg.Register(luma))

	got, err := reg.Get("video-luma")
	require.NoError(t, err)
	assert.Same(t, Adapter(luma), got)
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.NoError(t, reg.Register(&fakeAdapter{id: "compositor"}))
	assert.Error(t, reg.Register(&fakeAdapter{id: "compositor"}))
}

func TestRegistry_UnknownProvider(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	_, err := reg.Get("nope")
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
}

func TestRegistry_IDsSorted(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.NoError(t, reg.Register(&fakeAdapter{id: "video-pika"}))
	require.NoError(t, reg.Register(&fakeAdapter{id: "compositor"}))
	require.NoError(t, reg.Register(&fakeAdapter{id: "video-luma"}))

	assert.Equal(t, []string{"compositor", "video-luma", "video-pika"}, reg.IDs())
}
