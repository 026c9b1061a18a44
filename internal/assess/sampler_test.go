package assess

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSamplerCollectsInOrder(t *testing.T) {
	p := &scriptedProvider{pings: []float64{31, 29, 35, 30}}
	var trials []int
	s := Sampler{Count: 4, OnTrial: func(i, total int) {
		assert.Equal(t, 4, total)
		trials = append(trials, i)
	}}

	got, err := s.Collect(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []float64{31, 29, 35, 30}, got)
	assert.Equal(t, []int{1, 2, 3, 4}, trials)
}

func TestSamplerDefaultsToThreeTrials(t *testing.T) {
	p := &scriptedProvider{pings: []float64{5}}
	got, err := Sampler{}.Collect(context.Background(), p)
	require.NoError(t, err)
	assert.Len(t, got, DefaultSampleCount)
}

func TestSamplerNeverReturnsPartialSet(t *testing.T) {
	p := &scriptedProvider{pings: []float64{5, 6, 7}, failOnTrial: 3, selectErr: errors.New("gone")}
	got, err := Sampler{Count: 3}.Collect(context.Background(), p)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrEndpointUnavailable)
}
