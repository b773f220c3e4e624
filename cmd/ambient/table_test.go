package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bft-labs/ambient/internal/domain"
	"github.com/bft-labs/ambient/pkg/ambient"
)

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"1"}, {"2", "3"}}, []columnAlignment{alignRight})
	assert.Contains(t, out, "A")
	assert.Contains(t, out, "3")
	assert.Len(t, strings.Split(out, "\n"), 6, out)

	assert.Empty(t, renderTable(nil, nil, nil))
}

func TestItemLine(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		item ambient.Item
		want string
	}{
		{"news", ambient.Item{Title: "Headline", Source: "Example News"}, "Headline (Example News)"},
		{"plain", ambient.Item{Title: "hello"}, "hello"},
		{"event", ambient.Item{Title: "Dentist", Start: start, Symbol: "calendar"}, "[calendar] Dentist Sat Mar 14 09:30"},
		{"full day", ambient.Item{Title: "Pi Day", Start: start, FullDay: true}, "Pi Day Sat Mar 14"},
		{"current weather", ambient.Item{
			Title:   "48°",
			Weather: &domain.Weather{Condition: "rain", Description: "light rain", Temperature: 48},
		}, "48° light rain"},
		{"forecast day", ambient.Item{
			Title:   "rain",
			Weather: &domain.Weather{Date: start, MinTemp: 44, MaxTemp: 56},
		}, "Sat 56°/44° rain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, itemLine(tt.item))
		})
	}
}

func TestConfigErrorsTable(t *testing.T) {
	out := configErrorsTable([]error{
		&domain.ConfigError{Module: "calendar", Index: 2, Kind: domain.ConfigMissingRequiredField, Field: "calendars", Message: "at least one calendar is required"},
		errors.New("something else"),
	})
	assert.Contains(t, out, "calendars")
	assert.Contains(t, out, "at least one calendar is required")
	assert.Contains(t, out, "something else")
}

func TestSnapshotTable(t *testing.T) {
	out := snapshotTable([]ambient.Snapshot{
		{Name: "clock", Position: domain.PositionTopLeft, Loaded: true, Visible: []ambient.Item{{Title: "09:30"}}},
		{Name: "weather", Position: domain.PositionTopRight, Loaded: true,
			Error: &domain.FetchError{Kind: domain.ErrorUnauthorized, Message: "server returned 401"}},
		{Name: "newsfeed", Header: "News", Position: domain.PositionBottomBar},
	})
	assert.Contains(t, out, "09:30")
	assert.Contains(t, out, "error: server returned 401")
	assert.Contains(t, out, "newsfeed (News)")
	assert.Contains(t, out, "loading...")
}

func TestModulesTable(t *testing.T) {
	out := modulesTable([]domain.ModuleSpec{{
		ID:             "module_0_clock",
		Kind:           domain.KindClock,
		Position:       domain.PositionTopLeft,
		ReloadInterval: time.Second,
	}})
	assert.Contains(t, out, "module_0_clock")
	assert.Contains(t, out, "1s")
}
