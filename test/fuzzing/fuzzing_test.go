package fuzzing

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"txschools-scraper/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func runSeeds(t *testing.T, provider TargetProvider, seeds int, steps int) {
	f, err := New(telemetry.NoopAPI{}, provider, 1, uint64(steps), Path{})
	require.NoError(t, err)

	for seed := int64(1); seed <= int64(seeds); seed++ {
		rndm := rand.New(rand.NewSource(seed))
		target, err := provider.CreateTarget(telemetry.NoopAPI{}, rndm)
		require.NoError(t, err)

		results, err := f.RunPath(context.Background(), target, rndm, steps)
		require.NoError(t, err)
		require.False(t, results.Failed(), "seed %d:\n%s", seed, results)
	}
}

func TestValidateTarget(t *testing.T) {
	runSeeds(t, ValidateProvider{}, 25, 60)
}

func TestCrawlTarget(t *testing.T) {
	if testing.Short() {
		t.Skip("crawl fuzzing is slow")
	}
	runSeeds(t, CrawlProvider{}, 5, 12)
}

type stepless struct{}

func (stepless) Helper(ctx context.Context, res *Results) {}

type steplessProvider struct{}

func (steplessProvider) CreateTarget(telemetry.API, *rand.Rand) (Target, error) {
	return stepless{}, nil
}

type brokenProvider struct{}

func (brokenProvider) CreateTarget(telemetry.API, *rand.Rand) (Target, error) {
	return nil, errors.New("no target")
}

func TestNew(t *testing.T) {
	f, err := New(telemetry.NoopAPI{}, ValidateProvider{}, 1, 10, Path{})
	require.NoError(t, err)
	require.Len(t, f.steps, 5)
	require.True(t, f.onEnd.Func.IsValid())

	_, err = New(telemetry.NoopAPI{}, steplessProvider{}, 1, 10, Path{})
	require.Error(t, err)

	_, err = New(telemetry.NoopAPI{}, brokenProvider{}, 1, 10, Path{})
	require.Error(t, err)

	_, err = New(telemetry.NoopAPI{}, ValidateProvider{}, 10, 1, Path{})
	require.Error(t, err)
}

func TestParsePath(t *testing.T) {
	path, err := ParsePath("-42:17")
	require.NoError(t, err)
	require.Equal(t, Path{Seed: -42, Steps: 17}, path)
	require.Equal(t, "-42:17", path.String())

	for _, bad := range []string{"", "1", "1:2:3", "a:2", "1:b"} {
		_, err := ParsePath(bad)
		require.Error(t, err, bad)
	}
}
