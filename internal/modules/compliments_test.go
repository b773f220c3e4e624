package modules

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/ambient/internal/domain"
	"github.com/bft-labs/ambient/internal/ports"
)

func complimentLists() map[string][]string {
	return map[string][]string{
		"anytime":    {"Hey there sexy!"},
		"morning":    {"Good morning, handsome!", "Enjoy your day!"},
		"afternoon":  {"Hello, beauty!"},
		"evening":    {"Wow, you look hot!"},
		"rain":       {"Don't forget your umbrella"},
		"....-03-14": {"Happy pi day"},
		"2026-03-1.": {"Mid March already"},
		"....-12-25": {"Merry Christmas"},
	}
}

func titlesOf(items []domain.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Title
	}
	return out
}

func TestCompliments_PeriodAndDate(t *testing.T) {
	c := NewCompliments(domain.ComplimentsOptions{Lists: complimentLists()}, nil, time.UTC, fixedNow)

	res := c.Fetch(context.Background(), domain.ModuleSpec{})
	require.True(t, res.OK())
	assert.Equal(t, []string{
		"Hey there sexy!",
		"Good morning, handsome!",
		"Enjoy your day!",
		"Happy pi day",
		"Mid March already",
	}, titlesOf(res.Items))
}

func TestCompliments_Periods(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{2, "evening"},
		{3, "morning"},
		{11, "morning"},
		{12, "afternoon"},
		{16, "afternoon"},
		{17, "evening"},
		{23, "evening"},
	}
	c := NewCompliments(domain.ComplimentsOptions{}, nil, time.UTC, fixedNow)
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.period(tt.hour), "hour %d", tt.hour)
	}
}

func TestCompliments_FollowsWeather(t *testing.T) {
	bus := newRecordingBus()
	c := NewCompliments(domain.ComplimentsOptions{Lists: complimentLists()}, bus, time.UTC, fixedNow)

	bus.Publish(ports.TopicCurrentWeatherType, "module_2_weather", "rain")
	res := c.Fetch(context.Background(), domain.ModuleSpec{})
	assert.Contains(t, titlesOf(res.Items), "Don't forget your umbrella")

	require.NoError(t, c.Close())
	bus.Publish(ports.TopicCurrentWeatherType, "module_2_weather", "snow")
	res = c.Fetch(context.Background(), domain.ModuleSpec{})
	assert.Contains(t, titlesOf(res.Items), "Don't forget your umbrella", "closed modules stop following")

	c.SetWeatherType("day_sunny")
	res = c.Fetch(context.Background(), domain.ModuleSpec{})
	assert.NotContains(t, titlesOf(res.Items), "Don't forget your umbrella")
}

func TestMatchDate(t *testing.T) {
	assert.True(t, matchDate("....-12-25", "2026-12-25"))
	assert.True(t, matchDate("2026-12-..", "2026-12-01"))
	assert.False(t, matchDate("....-12-25", "2026-12-24"))
	assert.False(t, matchDate("morning", "2026-12-25"))
	assert.False(t, matchDate("..........", "2026-12-25"))
}
