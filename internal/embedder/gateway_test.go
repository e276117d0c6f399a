package embedder

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is a controllable Provider for gateway tests.
type fakeProvider struct {
	embedFn func(ctx context.Context, text string) ([]float32, error)
	calls   atomic.Int32
	closed  atomic.Bool
}

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.embedFn != nil {
		return f.embedFn(ctx, text)
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeProvider) Dimension() int { return 3 }
func (f *fakeProvider) Name() string   { return "fake" }
func (f *fakeProvider) Model() string  { return "fake-model" }
func (f *fakeProvider) Close() error {
	f.closed.Store(true)
	return nil
}

func newTestGateway(p Provider, opts ...GatewayOption) *Gateway {
	factory := func(Config) (Provider, error) { return p, nil }
	opts = append([]GatewayOption{WithFactory(factory)}, opts...)
	return NewGateway(Config{Provider: "fake", Model: "fake-model"}, opts...)
}

func TestGateway_Embed(t *testing.T) {
	g := newTestGateway(&fakeProvider{})

	vec, err := g.Embed(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, vec)
	assert.Equal(t, 3, g.Dimension())
}

func TestGateway_EmptyText(t *testing.T) {
	p := &fakeProvider{}
	g := newTestGateway(p)

	_, err := g.Embed(context.Background(), "")

	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Zero(t, p.calls.Load())
}

func TestGateway_TimeoutMapsToErrTimeout(t *testing.T) {
	p := &fakeProvider{
		embedFn: func(ctx context.Context, _ string) ([]float32, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	g := newTestGateway(p, WithTimeout(20*time.Millisecond))

	_, err := g.Embed(context.Background(), "slow")

	assert.ErrorIs(t, err, ErrTimeout)
}

func TestGateway_ProviderErrorMapsToErrFailed(t *testing.T) {
	p := &fakeProvider{
		embedFn: func(context.Context, string) ([]float32, error) {
			return nil, errors.New("model exploded")
		},
	}
	g := newTestGateway(p)

	_, err := g.Embed(context.Background(), "doomed")

	assert.ErrorIs(t, err, ErrFailed)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestGateway_LazyProviderConstruction(t *testing.T) {
	var constructed atomic.Int32
	g := NewGateway(Config{Provider: "fake", Model: "m"}, WithFactory(
		func(Config) (Provider, error) {
			constructed.Add(1)
			return &fakeProvider{}, nil
		}))

	assert.Zero(t, constructed.Load())
	assert.Equal(t, 0, g.Dimension())

	_, err := g.Embed(context.Background(), "first")
	require.NoError(t, err)
	assert.Equal(t, int32(1), constructed.Load())

	// Subsequent calls reuse the loaded provider.
	_, err = g.Embed(context.Background(), "second")
	require.NoError(t, err)
	assert.Equal(t, int32(1), constructed.Load())
}

func TestGateway_ResetReleasesAndReloadsProvider(t *testing.T) {
	var constructed atomic.Int32
	p := &fakeProvider{}
	g := NewGateway(Config{Provider: "fake", Model: "m"}, WithFactory(
		func(Config) (Provider, error) {
			constructed.Add(1)
			return p, nil
		}))

	_, err := g.Embed(context.Background(), "warm up")
	require.NoError(t, err)

	g.Reset()

	assert.True(t, p.closed.Load())
	assert.Equal(t, 0, g.Dimension())

	_, err = g.Embed(context.Background(), "after reset")
	require.NoError(t, err)
	assert.Equal(t, int32(2), constructed.Load())
}

func TestGateway_CacheSkipsProvider(t *testing.T) {
	p := &fakeProvider{}
	g := newTestGateway(p)

	_, err := g.Embed(context.Background(), "same text")
	require.NoError(t, err)
	_, err = g.Embed(context.Background(), "same text")
	require.NoError(t, err)

	assert.Equal(t, int32(1), p.calls.Load())
}

func TestGateway_FactoryErrorIsErrFailed(t *testing.T) {
	g := NewGateway(Config{Provider: "fake"}, WithFactory(
		func(Config) (Provider, error) {
			return nil, errors.New("no backend")
		}))

	_, err := g.Embed(context.Background(), "text")

	assert.ErrorIs(t, err, ErrFailed)
}

func TestNewProvider_Unsupported(t *testing.T) {
	_, err := newProvider(Config{Provider: "acme"})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestCache_Eviction(t *testing.T) {
	c := NewCache(2)

	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	c.Set("c", []float32{3})

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestCache_GetReturnsCopy(t *testing.T) {
	c := NewCache(4)
	c.Set("k", []float32{1, 2, 3})

	v, ok := c.Get("k")
	require.True(t, ok)
	v[0] = 99

	again, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, float32(1), again[0])
}

func TestComputeHash_Deterministic(t *testing.T) {
	assert.Equal(t, ComputeHash("abc"), ComputeHash("abc"))
	assert.NotEqual(t, ComputeHash("abc"), ComputeHash("abd"))
	assert.Len(t, ComputeHash("abc"), 64)
}
