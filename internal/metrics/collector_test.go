package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type mockStatsProvider struct {
	stats Stats
	err   error
	calls int
}

func (m *mockStatsProvider) LibraryStats(_ context.Context) (Stats, error) {
	m.calls++
	return m.stats, m.err
}

func TestCollectorUpdatesGauges(t *testing.T) {
	provider := &mockStatsProvider{stats: Stats{
		Total:      120,
		Missing:    4,
		Hidden:     7,
		Deleted:    2,
		Unplayable: 9,
		Thumbnails: 100,
	}}

	c := NewCollector(provider, time.Hour)
	c.collect()

	tests := []struct {
		state string
		want  float64
	}{
		{"total", 120},
		{"missing", 4},
		{"hidden", 7},
		{"deleted", 2},
		{"unplayable", 9},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			if got := testutil.ToFloat64(LibraryRecords.WithLabelValues(tt.state)); got != tt.want {
				t.Errorf("LibraryRecords{%s} = %v, want %v", tt.state, got, tt.want)
			}
		})
	}

	if got := testutil.ToFloat64(LibraryThumbnails); got != 100 {
		t.Errorf("LibraryThumbnails = %v, want 100", got)
	}
}

func TestCollectorKeepsGaugesOnError(t *testing.T) {
	LibraryThumbnails.Set(42)

	provider := &mockStatsProvider{err: errors.New("store closed")}
	c := NewCollector(provider, time.Hour)
	c.collect()

	if provider.calls != 1 {
		t.Errorf("provider called %d times, want 1", provider.calls)
	}
	if got := testutil.ToFloat64(LibraryThumbnails); got != 42 {
		t.Errorf("LibraryThumbnails = %v, want unchanged 42", got)
	}
}

func TestCollectorNilProvider(t *testing.T) {
	c := NewCollector(nil, time.Hour)
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("collect panicked with nil provider: %v", r)
		}
	}()
	c.collect()
}

func TestCollectorStartStop(t *testing.T) {
	provider := &mockStatsProvider{}
	c := NewCollector(provider, 10*time.Millisecond)
	c.Start()
	time.Sleep(35 * time.Millisecond)
	c.Stop()
}
