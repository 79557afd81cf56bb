package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeSnapshot(t *testing.T) {
	cur, weekAgo := activeDelta(day(20), 100, -14)
	s := Snapshot{
		Name:   "Travis County",
		Kind:   "County",
		Parent: "Texas",
		Date:   day(20),
		Cases:  1200,
		Active: 100,
		Trend:  ClassifyTrend(cur, weekAgo, 0),
	}
	s.TrendText = s.Trend.String()

	out, err := SerializeSnapshot("state_detail_TX", s)
	require.NoError(t, err)

	assert.Equal(t, "state_detail_TX/Texas/Travis County", string(out.Key))
	assert.Equal(t, "state_detail_TX", out.Headers["report"])
	assert.Equal(t, "County", out.Headers["kind"])
	assert.Equal(t, "2020-03-20", out.Headers["date"])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Value, &decoded))
	assert.Equal(t, "state_detail_TX", decoded["report"])
	assert.Equal(t, "Travis County", decoded["name"])
	assert.Equal(t, 1200.0, decoded["cases"])
	assert.Equal(t, true, decoded["improving"])
	assert.Equal(t, 50.0, decoded["days_to_zero"])
	assert.Equal(t, "2020-05-09", decoded["zero_date"])
	assert.Equal(t, "50 days (2020-05-09)", decoded["trend"])
	assert.NotContains(t, decoded, "cases_per", "absent without population")
}
