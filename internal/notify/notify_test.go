package notify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel_DropsWhenFull(t *testing.T) {
	c := NewChannel(1)
	c.Notify(Notification{Level: LevelSuccess, Message: MessageSyncComplete})
	c.Notify(Notification{Level: LevelFailure, Message: "second"})

	got := <-c.C()
	assert.Equal(t, MessageSyncComplete, got.Message)
	assert.Equal(t, int64(1), c.Dropped())
}

func TestMulti_FansOut(t *testing.T) {
	var a, b Recorder
	Multi{&a, &b, Discard{}, Log{}}.Notify(Notification{Level: LevelFailure, Message: "sync failed", Err: errors.New("timeout")})

	last, ok := a.Last()
	require.True(t, ok)
	assert.Equal(t, "sync failed", last.Message)
	assert.Len(t, b.All(), 1)
}

func TestRecorder_Empty(t *testing.T) {
	var r Recorder
	_, ok := r.Last()
	assert.False(t, ok)
	assert.Empty(t, r.All())
}
