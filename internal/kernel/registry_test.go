package kernel

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"golang.org/x/sync/errgroup"
)

type stubLibrary struct {
	name   string
	module *starlarkstruct.Module
}

func (s *stubLibrary) Name() string                     { return s.name }
func (s *stubLibrary) Module() *starlarkstruct.Module   { return s.module }
func (s *stubLibrary) Exporter(string) (Exporter, bool) { return nil, false }

func newStub(name string) *stubLibrary {
	return &stubLibrary{name: name, module: &starlarkstruct.Module{
		Name:    name,
		Members: starlark.StringDict{"items": starlark.NewList(nil)},
	}}
}

func TestImportLoadsOnceAndFreezes(t *testing.T) {
	var calls atomic.Int32
	Register("stub-once", func() (Library, error) {
		calls.Add(1)
		return newStub("stub-once"), nil
	})

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			_, err := Import("  Stub-Once ")
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), calls.Load())

	lib, err := Import("stub-once")
	require.NoError(t, err)
	items := lib.Module().Members["items"].(*starlark.List)
	assert.Error(t, items.Append(starlark.None), "module should be frozen")
}

func TestImportDoesNotCacheFailures(t *testing.T) {
	var calls atomic.Int32
	Register("stub-flaky", func() (Library, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("native library missing")
		}
		return newStub("stub-flaky"), nil
	})

	_, err := Import("stub-flaky")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "native library missing")

	lib, err := Import("stub-flaky")
	require.NoError(t, err)
	assert.Equal(t, "stub-flaky", lib.Name())
}

func TestImportUnknownKernel(t *testing.T) {
	_, err := Import("no-such-kernel")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestImportRecoversLoaderPanic(t *testing.T) {
	Register("stub-panic", func() (Library, error) { panic("boom") })
	_, err := Import("stub-panic")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "boom")

	Register("stub-nil", func() (Library, error) { return nil, nil })
	_, err = Import("stub-nil")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	Register("stub-dup", func() (Library, error) { return newStub("stub-dup"), nil })
	assert.Panics(t, func() {
		Register("STUB-DUP", func() (Library, error) { return nil, nil })
	})
	assert.Panics(t, func() { Register(" ", func() (Library, error) { return nil, nil }) })
	assert.Panics(t, func() { Register("stub-nil-loader", nil) })
}
