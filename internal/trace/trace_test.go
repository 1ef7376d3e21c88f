package trace

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventLevels(t *testing.T) {
	tests := []struct {
		eventType EventType
		level     string
	}{
		{EventTypeRunStart, "info"},
		{EventTypeCommandFail, "error"},
		{EventTypeRunFail, "error"},
		{EventTypeProductFail, "warning"},
		{EventTypeProduct, "info"},
	}
	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			e := NewEvent(tt.eventType, "run-1")
			assert.Equal(t, tt.level, e.Level)
			assert.NotEmpty(t, e.ID)
		})
	}

	e := NewEvent(EventTypeCommandComplete, "run-1").WithError(fmt.Errorf("boom"))
	assert.Equal(t, "error", e.Level)
	assert.Equal(t, "boom", e.Error)
}

func TestRecorderInMemory(t *testing.T) {
	r, err := NewRecorder(Config{MaxEvents: 2})
	require.NoError(t, err)

	require.NoError(t, r.Record(NewEvent(EventTypeRunStart, "a")))
	require.NoError(t, r.Record(NewEvent(EventTypeRunStart, "b")))
	require.NoError(t, r.Record(NewEvent(EventTypeRunComplete, "b")))

	assert.Len(t, r.Events(""), 2)
	assert.Len(t, r.Events("b"), 2)
	assert.Empty(t, r.Events("a"))
}

func TestRecorderWritesFile(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRecorder(Config{Enabled: true, Dir: dir})
	require.NoError(t, err)

	start := NewEvent(EventTypeCommandStart, "run-7").WithCommand("spade")
	done := NewEvent(EventTypeCommandComplete, "run-7").
		WithCommand("spade").
		WithData("tree_digest", "abc").
		WithDuration(2 * time.Second)
	require.NoError(t, r.Record(start))
	require.NoError(t, r.Record(done))

	events, err := ReadFile(r.Path("run-7"))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventTypeCommandStart, events[0].Type)
	assert.Equal(t, "spade", events[1].Command)
	assert.Equal(t, "abc", events[1].Data["tree_digest"])
	assert.Equal(t, 2*time.Second, events[1].Duration)
}
