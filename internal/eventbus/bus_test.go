package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFiltersByTopic(t *testing.T) {
	b := New()
	all, unsubAll := b.Subscribe(4)
	defer unsubAll()
	phases, unsubPhases := b.Subscribe(4, TopicPhase)
	defer unsubPhases()

	b.Publish(Event{Topic: TopicPhase, Subject: "a1", Data: "starting"})
	b.Publish(Event{Topic: TopicSnapshot})

	require.Len(t, all, 2)
	require.Len(t, phases, 1)
	ev := <-phases
	assert.Equal(t, "a1", ev.Subject)
	assert.False(t, ev.Time.IsZero())
}

func TestPublishNeverBlocks(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	for i := 0; i < 5; i++ {
		b.Publish(Event{Topic: TopicPhase})
	}
	assert.EqualValues(t, 4, Dropped(b))
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()

	_, ok := <-ch
	assert.False(t, ok)
	b.Publish(Event{Topic: TopicPhase})
}
