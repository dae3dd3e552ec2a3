package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopAdapter struct{}

func (noopAdapter) Open(context.Context) error                  { return nil }
func (noopAdapter) DismissInitialDialogs(context.Context) error { return nil }
func (noopAdapter) Exit(context.Context) error                  { return nil }

func noopFactory(Host) (Adapter, error) { return noopAdapter{}, nil }

func TestRegistryResolveExactMatchOnly(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("Chrome", noopFactory))
	require.NoError(t, r.Register("Maps", noopFactory))

	tests := []struct {
		id    string
		found bool
	}{
		{"Chrome", true},
		{"Maps", true},
		{"chrome", false},
		{"CHROME", false},
		{"Chrome ", false},
		{"", false},
		{"YouTube", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			f, err := r.Resolve(tt.id)
			if tt.found {
				require.NoError(t, err)
				assert.NotNil(t, f)
				return
			}
			assert.Nil(t, f)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestRegistryRegisterValidation(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("Gmail", noopFactory))

	assert.ErrorIs(t, r.Register("Gmail", noopFactory), ErrDuplicateAdapter)
	assert.ErrorIs(t, r.Register("  ", noopFactory), ErrInvalidAdapter)
	assert.ErrorIs(t, r.Register("Photos", nil), ErrInvalidAdapter)

	// Case-distinct identifiers are distinct bindings.
	require.NoError(t, r.Register("gmail", noopFactory))
	assert.Equal(t, []string{"Gmail", "gmail"}, r.IDs())
}

func TestRegistrySeal(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("YouTube", noopFactory))
	r.Seal()

	assert.ErrorIs(t, r.Register("PlayStore", noopFactory), ErrSealed)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryInstantiate(t *testing.T) {
	r := NewRegistry()
	cause := errors.New("driver missing")

	tests := []struct {
		name    string
		factory Factory
		wantErr bool
	}{
		{name: "ok", factory: noopFactory},
		{name: "factory error", factory: func(Host) (Adapter, error) { return nil, cause }, wantErr: true},
		{name: "nil instance", factory: func(Host) (Adapter, error) { return nil, nil }, wantErr: true},
		{name: "panic", factory: func(Host) (Adapter, error) { panic("boom") }, wantErr: true},
		{name: "nil factory", factory: nil, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := r.Instantiate("Maps", tt.factory, Host{})
			if !tt.wantErr {
				require.NoError(t, err)
				assert.NotNil(t, a)
				return
			}
			assert.Nil(t, a)
			var ce *ConstructionError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, "Maps", ce.ID)
			assert.NotErrorIs(t, err, ErrNotFound)
		})
	}

	_, err := r.Instantiate("Maps", func(Host) (Adapter, error) { return nil, cause }, Host{})
	assert.ErrorIs(t, err, cause)
}

func TestRegistryInstantiateFreshInstances(t *testing.T) {
	r := NewRegistry()
	calls := 0
	require.NoError(t, r.Register("Photos", func(Host) (Adapter, error) {
		calls++
		return &noopAdapterPtr{n: calls}, nil
	}))

	f, err := r.Resolve("Photos")
	require.NoError(t, err)
	a1, err := r.Instantiate("Photos", f, Host{})
	require.NoError(t, err)
	a2, err := r.Instantiate("Photos", f, Host{})
	require.NoError(t, err)

	assert.NotSame(t, a1, a2)
	assert.Equal(t, 2, calls)
}

type noopAdapterPtr struct {
	noopAdapter
	n int
}
