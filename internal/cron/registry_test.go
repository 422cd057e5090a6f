package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	a, b := &stubJob{name: "a"}, &stubJob{name: "b"}
	registry, err := NewRegistry(a, b)
	require.NoError(t, err)

	jobs := registry.Jobs()
	require.Equal(t, []Job{a, b}, jobs)
	jobs[0] = nil
	require.NotNil(t, registry.Jobs()[0])
}

func TestRegistryRejectsDuplicatesAndNil(t *testing.T) {
	registry, err := NewRegistry(&stubJob{name: "sweep"})
	require.NoError(t, err)
	require.Error(t, registry.Register(&stubJob{name: "sweep"}))
	require.Error(t, registry.Register(nil))
	require.Len(t, registry.Jobs(), 1)
}
