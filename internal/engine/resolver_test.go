package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFallbackOrder(t *testing.T) {
	page := newFakePage()
	page.addControl("#periodo-v2")

	resolver := NewResolver(testLogger())
	spec := FieldSpec{
		Name:      "periodo",
		Selectors: []string{"#periodo", "#periodo-v2", "select[name=periodo]"},
	}

	ctl, err := resolver.Resolve(context.Background(), page, spec)
	require.NoError(t, err)
	assert.Equal(t, "#periodo-v2", ctl.Selector)
	assert.Equal(t, "periodo", ctl.Field)
}

func TestResolvePrefersEarlierCandidate(t *testing.T) {
	page := newFakePage()
	page.addControl("#ejercicio")
	page.addControl("select[name=ejercicio]")

	resolver := NewResolver(testLogger())
	spec := FieldSpec{
		Name:      "ejercicio",
		Selectors: []string{"#ejercicio", "select[name=ejercicio]"},
	}

	ctl, err := resolver.Resolve(context.Background(), page, spec)
	require.NoError(t, err)
	assert.Equal(t, "#ejercicio", ctl.Selector)
}

func TestResolveIdempotent(t *testing.T) {
	page := newFakePage()
	page.addControl("#tipo-declaracion")

	resolver := NewResolver(testLogger())
	spec := FieldSpec{Name: "tipo", Selectors: []string{"#missing", "#tipo-declaracion"}}

	first, err := resolver.Resolve(context.Background(), page, spec)
	require.NoError(t, err)
	second, err := resolver.Resolve(context.Background(), page, spec)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveExhaustedChain(t *testing.T) {
	page := newFakePage()

	resolver := NewResolver(testLogger())
	spec := FieldSpec{Name: "ghost", Selectors: []string{"#a", "#b"}}

	_, err := resolver.Resolve(context.Background(), page, spec)
	require.ErrorIs(t, err, ErrFieldNotFound)
	assert.Contains(t, err.Error(), "ghost")
}

func TestResolveEmptyChain(t *testing.T) {
	resolver := NewResolver(testLogger())

	_, err := resolver.Resolve(context.Background(), newFakePage(), FieldSpec{Name: "empty"})
	require.ErrorIs(t, err, ErrFieldNotFound)
}

func TestResolveCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resolver := NewResolver(testLogger())
	spec := FieldSpec{Name: "x", Selectors: []string{"#x"}}

	_, err := resolver.Resolve(ctx, newFakePage(), spec)
	require.ErrorIs(t, err, context.Canceled)
}
