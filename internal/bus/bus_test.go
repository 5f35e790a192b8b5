package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicPrefixMatch(t *testing.T) {
	topic := NewTopic("state")
	playerCh := topic.Subscribe("player.")
	ripperCh := topic.Subscribe("ripper.")

	topic.Publish(Message{Event: "player.stopped"})

	select {
	case msg := <-playerCh:
		assert.Equal(t, "player.stopped", msg.Event)
	case <-time.After(time.Second):
		t.Fatal("expected message on playerCh")
	}

	select {
	case <-ripperCh:
		t.Fatal("ripperCh should not have received a non-matching event")
	default:
	}
}

func TestTopicEmptyPrefixMatchesEverything(t *testing.T) {
	topic := NewTopic("state")
	ch := topic.Subscribe("")

	topic.Publish(Message{Event: "anything"})

	select {
	case msg := <-ch:
		assert.Equal(t, "anything", msg.Event)
	case <-time.After(time.Second):
		t.Fatal("expected message")
	}
}

func TestTopicDropsOnFullSubscriber(t *testing.T) {
	topic := NewTopic("state")
	ch := topic.Subscribe("")

	for i := 0; i < defaultHighWaterMark+5; i++ {
		topic.Publish(Message{Event: "x"})
	}

	assert.LessOrEqual(t, len(ch), defaultHighWaterMark)
}

func TestQueueSendReceive(t *testing.T) {
	q := NewQueue("command", 1)
	q.Send(Message{Event: "disc"})

	select {
	case msg := <-q.Receive():
		assert.Equal(t, "disc", msg.Event)
	case <-time.After(time.Second):
		t.Fatal("expected message on queue")
	}
}

func TestDispatcherExactMatch(t *testing.T) {
	d := NewDispatcher()
	var called string
	d.On("play", func(Message) { called = "play" })
	d.On("stop", func(Message) { called = "stop" })

	d.Dispatch(Message{Event: "stop"})

	assert.Equal(t, "stop", called)
}

func TestDispatcherFallbackOnUnmatched(t *testing.T) {
	d := NewDispatcher()
	var fellThrough bool
	d.OnUnmatched(func(Message) { fellThrough = true })

	d.Dispatch(Message{Event: "nonsense"})

	assert.True(t, fellThrough)
}

func TestDispatcherRunDrainsUntilClosed(t *testing.T) {
	d := NewDispatcher()
	count := 0
	d.On("tick", func(Message) { count++ })

	ch := make(chan Message, 3)
	ch <- Message{Event: "tick"}
	ch <- Message{Event: "tick"}
	close(ch)

	d.Run(ch)

	require.Equal(t, 2, count)
}
