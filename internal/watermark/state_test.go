package watermark

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AndreyKarmanov/aw-garmin/internal/domain"
)

func TestStateSetRoundsUpToWholeUTCSeconds(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	ts := time.Date(2024, time.January, 10, 2, 30, 0, 750_000_000, loc)

	var state State
	state.Set(domain.StreamActivity, &ts)

	require.Equal(t, time.UTC, state.Activity.Location())
	require.Equal(t, time.Date(2024, time.January, 10, 1, 30, 1, 0, time.UTC), *state.Activity)
	require.Nil(t, state.Get(domain.StreamSleep))
	require.Nil(t, state.Get(domain.Stream("steps")))
}

func TestStateJSON(t *testing.T) {
	end := time.Date(2024, time.January, 10, 7, 0, 0, 0, time.UTC)
	data, err := json.Marshal(State{Activity: &end})
	require.NoError(t, err)
	require.JSONEq(t, `{"sleep":null,"activity":"2024-01-10T07:00:00Z"}`, string(data))

	var decoded State
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Nil(t, decoded.Sleep)
	require.Equal(t, end, *decoded.Activity)

	require.NoError(t, json.Unmarshal([]byte(`{}`), &decoded))
	require.Equal(t, State{}, decoded)
}
