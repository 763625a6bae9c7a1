package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCompositeEventID(t *testing.T) {
	tests := []struct {
		name      string
		composite string
		want      []LegRef
	}{
		{
			"two plain slugs",
			"soccer-198772-basketball-401547",
			[]LegRef{{"soccer", "198772"}, {"basketball", "401547"}},
		},
		{
			"hyphenated slug does not mis-split",
			"rugby-league-6641-soccer-198772",
			[]LegRef{{"rugby-league", "6641"}, {"soccer", "198772"}},
		},
		{
			"single sport-prefixed id",
			"mma-778001",
			[]LegRef{{"mma", "778001"}},
		},
		{
			"bare numeric id has no sport",
			"198772",
			[]LegRef{{"", "198772"}},
		},
		{
			"hyphenated id inside a leg",
			"soccer-fix-2024-10-basketball-55",
			[]LegRef{{"soccer", "fix-2024-10"}, {"basketball", "55"}},
		},
		{
			"empty",
			"",
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitCompositeEventID(tt.composite))
		})
	}
}

func TestDecodePrediction_Single(t *testing.T) {
	w := &Wager{Prediction: "Arsenal", ExternalEventID: "198772"}
	p, err := DecodePrediction(w)
	require.NoError(t, err)

	single, ok := p.(SinglePrediction)
	require.True(t, ok)
	assert.Equal(t, "Arsenal", single.Text)
}

func TestDecodePrediction_JSONLegs(t *testing.T) {
	w := &Wager{
		Prediction: `[{"event_id":"soccer-198772","prediction":"home","market_id":"12","outcome_id":"1X"},
		              {"event_id":"basketball-401547","prediction":"Over 210.5"}]`,
	}
	p, err := DecodePrediction(w)
	require.NoError(t, err)

	parlay, ok := p.(ParlayPrediction)
	require.True(t, ok)
	require.Len(t, parlay.Legs, 2)
	assert.Equal(t, "198772", parlay.Legs[0].EventID)
	assert.Equal(t, "soccer", parlay.Legs[0].Sport)
	assert.Equal(t, "1X", parlay.Legs[0].OutcomeID)
	assert.Equal(t, "401547", parlay.Legs[1].EventID)
	assert.Equal(t, "basketball", parlay.Legs[1].Sport)
}

func TestDecodePrediction_DelimitedLegs(t *testing.T) {
	w := &Wager{
		Prediction:      "Arsenal | Under 2.5",
		ExternalEventID: "soccer-198772-soccer-198773",
	}
	p, err := DecodePrediction(w)
	require.NoError(t, err)

	parlay, ok := p.(ParlayPrediction)
	require.True(t, ok)
	require.Len(t, parlay.Legs, 2)
	assert.Equal(t, "Arsenal", parlay.Legs[0].Prediction)
	assert.Equal(t, "198772", parlay.Legs[0].EventID)
	assert.Equal(t, "Under 2.5", parlay.Legs[1].Prediction)
	assert.Equal(t, "198773", parlay.Legs[1].EventID)
}

func TestDecodePrediction_DelimitedCountMismatch(t *testing.T) {
	w := &Wager{
		Prediction:      "Arsenal | Under 2.5 | BTTS yes",
		ExternalEventID: "soccer-198772-soccer-198773",
	}
	_, err := DecodePrediction(w)
	require.Error(t, err)
}

func TestDecodePrediction_MalformedJSON(t *testing.T) {
	w := &Wager{Prediction: `[{"event_id":`}
	_, err := DecodePrediction(w)
	require.Error(t, err)
}

func TestEventIDMatches(t *testing.T) {
	assert.True(t, EventIDMatches("198772", "198772"))
	assert.True(t, EventIDMatches("soccer-198772", "198772"))
	assert.True(t, EventIDMatches("198772", "soccer-198772"))
	assert.True(t, EventIDMatches("soccer-198772", "soccer-198772"))
	assert.False(t, EventIDMatches("198772", "198773"))
	assert.False(t, EventIDMatches("", "198772"))

	// Provider ids are unique per sport only; matching slugs must agree.
	assert.False(t, EventIDMatches("soccer-123", "basketball-123"))
	assert.False(t, EventIDMatches("ice-hockey-55", "basketball-55"))
}
