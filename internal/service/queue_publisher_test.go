package queue_publisher

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/brt-fare-chart/internal/fares"
	q "github.com/iliyamo/brt-fare-chart/internal/queue"
)

func testMatrix(t *testing.T) *fares.Matrix {
	t.Helper()
	m, err := fares.Parse([][]string{
		{"", "A", "B"},
		{"", "0", "5"},
		{"", "7"},
	})
	require.NoError(t, err)
	return m
}

func TestNewEvent(t *testing.T) {
	at := time.Date(2026, 10, 15, 10, 30, 0, 0, time.FixedZone("EAT", 3*3600))
	ev := NewEvent("fare_data.xlsx", false, testMatrix(t), at)
	assert.Equal(t, q.FaresLoadedEvent{
		Workbook:   "fare_data.xlsx",
		Stops:      2,
		RaggedRows: 1,
		Strict:     false,
		LoadedAt:   "2026-10-15T07:30:00Z",
	}, ev)
}

func TestLoadHookPublishesInBackground(t *testing.T) {
	got := make(chan q.FaresLoadedEvent, 1)
	publish := func(_ context.Context, url, queueName string, ev q.FaresLoadedEvent) error {
		assert.Equal(t, "amqp://broker/", url)
		assert.Equal(t, "fares.loaded", queueName)
		got <- ev
		return nil
	}
	hook := loadHook(publish, "amqp://broker/", "fares.loaded", "fare_data.xlsx", true, log.New(io.Discard))
	hook(context.Background(), testMatrix(t))

	select {
	case ev := <-got:
		assert.Equal(t, 2, ev.Stops)
		assert.True(t, ev.Strict)
	case <-time.After(time.Second):
		t.Fatal("event was not published")
	}
}

func TestLoadHookSwallowsPublishErrors(t *testing.T) {
	done := make(chan struct{})
	publish := func(context.Context, string, string, q.FaresLoadedEvent) error {
		defer close(done)
		return errors.New("broker down")
	}
	hook := loadHook(publish, "amqp://broker/", "fares.loaded", "fare_data.xlsx", false, log.New(io.Discard))
	assert.NotPanics(t, func() { hook(context.Background(), testMatrix(t)) })
	<-done
}
