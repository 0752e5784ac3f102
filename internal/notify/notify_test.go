package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventFillsIDAndTimestamp(t *testing.T) {
	ev := NewEvent(LevelInfo, "uploaded report.pdf")
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.At.IsZero())
	assert.Equal(t, LevelInfo, ev.Level)
	assert.Equal(t, "uploaded report.pdf", ev.Message)
}

func TestChannelSinkDelivers(t *testing.T) {
	s := NewChannelSink(2)
	s.Notify(NewEvent(LevelWarn, "first"))
	s.Notify(NewEvent(LevelError, "second"))

	require.Len(t, s.C, 2)
	assert.Equal(t, "first", (<-s.C).Message)
	assert.Equal(t, "second", (<-s.C).Message)
}

func TestChannelSinkDropsWhenFull(t *testing.T) {
	s := NewChannelSink(1)
	s.Notify(NewEvent(LevelInfo, "kept"))
	s.Notify(NewEvent(LevelInfo, "dropped"))

	require.Len(t, s.C, 1)
	assert.Equal(t, "kept", (<-s.C).Message)
}

func TestMultiFansOut(t *testing.T) {
	a := NewChannelSink(1)
	b := NewChannelSink(1)
	Multi{a, b}.Notify(NewEvent(LevelInfo, "both"))

	assert.Len(t, a.C, 1)
	assert.Len(t, b.C, 1)
}
