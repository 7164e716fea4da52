package buildplan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeStable(t *testing.T) {
	b := populatedBuilder(t)
	plan, err := b.Finalize()
	require.NoError(t, err)

	first, err := Canonicalize(plan)
	require.NoError(t, err)
	second, err := Canonicalize(plan)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second), "canonical form must be byte-stable")
}

func TestFingerprintExcludesItself(t *testing.T) {
	b := populatedBuilder(t)
	plan, err := b.Finalize()
	require.NoError(t, err)

	// Recomputing over the stamped plan reproduces the stamp.
	recomputed, err := Fingerprint(plan)
	require.NoError(t, err)
	assert.Equal(t, plan.Fingerprint, recomputed)
}

func TestFingerprintChangesWithContent(t *testing.T) {
	b := populatedBuilder(t)
	plan, err := b.Finalize()
	require.NoError(t, err)

	changed := plan.Clone()
	changed.Phases[0].Tasks[0].Title = "Scaffold repository differently"

	fp, err := Fingerprint(changed)
	require.NoError(t, err)
	assert.NotEqual(t, plan.Fingerprint, fp)
}
