package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedJob string

func (n namedJob) Name() string              { return string(n) }
func (n namedJob) Run(context.Context) error { return nil }

func TestRegistryPreservesOrderAndSkipsNil(t *testing.T) {
	reg, err := NewRegistry(namedJob("retention"), nil, namedJob("backlog"))
	require.NoError(t, err)

	jobs := reg.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "retention", jobs[0].Name())
	assert.Equal(t, "backlog", jobs[1].Name())

	jobs[0] = nil
	assert.NotNil(t, reg.Jobs()[0], "caller mutation must not reach the registry")
}

func TestRegistryRejectsDuplicateAndBlankNames(t *testing.T) {
	_, err := NewRegistry(namedJob("outbox-retention"), namedJob("outbox-retention"))
	assert.ErrorContains(t, err, "already registered")

	_, err = NewRegistry(namedJob(""))
	assert.Error(t, err)
}
