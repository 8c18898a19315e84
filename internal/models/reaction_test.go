package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReactionSetToggleAddsAndRemoves(t *testing.T) {
	set := ReactionSet{}

	set, err := set.Toggle(ReactionClap, "kid@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, set.CountFor(ReactionClap))

	set, err = set.Toggle(ReactionClap, "peer@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, set.CountFor(ReactionClap))

	set, err = set.Toggle(ReactionClap, "kid@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, set.CountFor(ReactionClap))
	assert.Equal(t, []string{"peer@example.com"}, set[0].Users)
}

func TestReactionSetToggleTwiceRestoresOriginal(t *testing.T) {
	original := ReactionSet{
		{Type: ReactionStar, Users: []string{"a@example.com"}},
		{Type: ReactionFire, Users: []string{"b@example.com", "c@example.com"}},
	}

	once, err := original.Toggle(ReactionFire, "d@example.com")
	require.NoError(t, err)
	twice, err := once.Toggle(ReactionFire, "d@example.com")
	require.NoError(t, err)

	assert.Equal(t, original, twice)
}

func TestReactionSetTogglePrunesEmptyEntries(t *testing.T) {
	set := ReactionSet{{Type: ReactionHeart, Users: []string{"only@example.com"}}}

	set, err := set.Toggle(ReactionHeart, "only@example.com")
	require.NoError(t, err)
	assert.Empty(t, set)
	assert.Equal(t, 0, set.CountFor(ReactionHeart))
}

func TestReactionSetToggleNormalizesEmail(t *testing.T) {
	set := ReactionSet{{Type: ReactionCelebrate, Users: []string{"kid@example.com"}}}

	set, err := set.Toggle(ReactionCelebrate, "  KID@Example.COM  ")
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestReactionSetToggleInvalidType(t *testing.T) {
	set := ReactionSet{}
	_, err := set.Toggle(ReactionType("THUMBS"), "kid@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid reaction type")
}

func TestReactionSetToggleRequiresEmail(t *testing.T) {
	set := ReactionSet{}
	_, err := set.Toggle(ReactionClap, "   ")
	require.Error(t, err)
}

func TestReactionSetToggleNoDuplicateEntries(t *testing.T) {
	set := ReactionSet{}
	var err error
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		set, err = set.Toggle(ReactionStar, email)
		require.NoError(t, err)
	}

	assert.Len(t, set, 1)
	assert.Equal(t, 3, set.CountFor(ReactionStar))
}

func TestReactionSetScanRoundTrip(t *testing.T) {
	original := ReactionSet{{Type: ReactionClap, Users: []string{"a@example.com"}}}

	value, err := original.Value()
	require.NoError(t, err)

	var scanned ReactionSet
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, original, scanned)
}

func TestReactionSetScanNull(t *testing.T) {
	var scanned ReactionSet
	require.NoError(t, scanned.Scan(nil))
	assert.NotNil(t, scanned)
	assert.Empty(t, scanned)
}
