package feed_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vireohealth/coachgate/feed"
)

// fakeListener stands in for *pq.Listener so dispatch can be driven by hand.
type fakeListener struct {
	mu        sync.Mutex
	listening map[string]bool
	ch        chan *pq.Notification
	closed    bool
	listenErr error
}

var _ feed.Listener = (*fakeListener)(nil)

func newFakeListener() *fakeListener {
	return &fakeListener{
		listening: map[string]bool{},
		ch:        make(chan *pq.Notification, 16),
	}
}

func (l *fakeListener) Listen(channel string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listenErr != nil {
		return l.listenErr
	}
	l.listening[channel] = true
	return nil
}

func (l *fakeListener) Unlisten(channel string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.listening, channel)
	return nil
}

func (l *fakeListener) NotificationChannel() <-chan *pq.Notification {
	return l.ch
}

func (l *fakeListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.ch)
	}
	return nil
}

func (l *fakeListener) isListening(channel string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.listening[channel]
}

func (l *fakeListener) notify(channel, payload string) {
	l.ch <- &pq.Notification{Channel: channel, Extra: payload}
}

func wireEvent(t *testing.T, operation, table string, payload any) string {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	body, err := json.Marshal(map[string]any{
		"operation": operation,
		"schema":    "public",
		"table":     table,
		"payload":   json.RawMessage(raw),
	})
	require.NoError(t, err)
	return string(body)
}

func waitForEvent(t *testing.T, events <-chan feed.Event) feed.Event {
	t.Helper()

	select {
	case event := <-events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return feed.Event{}
	}
}

func TestSubscriber_Subscribe(t *testing.T) {
	t.Run("delivers table events to the callback", func(t *testing.T) {
		listener := newFakeListener()
		sub := feed.NewWithListener(listener)
		defer sub.Close()

		events := make(chan feed.Event, 4)
		subscription, err := sub.Subscribe("meals", func(e feed.Event) { events <- e })
		require.NoError(t, err)
		defer subscription.Cancel()

		assert.True(t, listener.isListening("changefeed_meals"))

		listener.notify("changefeed_meals", wireEvent(t, feed.OpInsert, "meals", map[string]string{"id": "1"}))

		event := waitForEvent(t, events)
		assert.Equal(t, feed.OpInsert, event.Operation)
		assert.Equal(t, "meals", event.Table)
		assert.Equal(t, "public", event.Schema)
		assert.JSONEq(t, `{"id":"1"}`, string(event.Payload))
	})

	t.Run("delivers insert update and delete alike", func(t *testing.T) {
		listener := newFakeListener()
		sub := feed.NewWithListener(listener)
		defer sub.Close()

		events := make(chan feed.Event, 4)
		_, err := sub.Subscribe("meals", func(e feed.Event) { events <- e })
		require.NoError(t, err)

		for _, op := range []string{feed.OpInsert, feed.OpUpdate, feed.OpDelete} {
			listener.notify("changefeed_meals", wireEvent(t, op, "meals", map[string]string{}))
		}

		assert.Equal(t, feed.OpInsert, waitForEvent(t, events).Operation)
		assert.Equal(t, feed.OpUpdate, waitForEvent(t, events).Operation)
		assert.Equal(t, feed.OpDelete, waitForEvent(t, events).Operation)
	})

	t.Run("other tables do not leak into the subscription", func(t *testing.T) {
		listener := newFakeListener()
		sub := feed.NewWithListener(listener)
		defer sub.Close()

		meals := make(chan feed.Event, 4)
		workouts := make(chan feed.Event, 4)
		_, err := sub.Subscribe("meals", func(e feed.Event) { meals <- e })
		require.NoError(t, err)
		_, err = sub.Subscribe("workouts", func(e feed.Event) { workouts <- e })
		require.NoError(t, err)

		listener.notify("changefeed_workouts", wireEvent(t, feed.OpInsert, "workouts", map[string]string{}))

		event := waitForEvent(t, workouts)
		assert.Equal(t, "workouts", event.Table)
		assert.Empty(t, meals)
	})

	t.Run("requires a table and a callback", func(t *testing.T) {
		sub := feed.NewWithListener(newFakeListener())
		defer sub.Close()

		_, err := sub.Subscribe("", func(feed.Event) {})
		assert.Error(t, err)

		_, err = sub.Subscribe("meals", nil)
		assert.Error(t, err)
	})

	t.Run("listen failure surfaces immediately", func(t *testing.T) {
		listener := newFakeListener()
		listener.listenErr = assert.AnError

		sub := feed.NewWithListener(listener)
		defer sub.Close()

		subscription, err := sub.Subscribe("meals", func(feed.Event) {})
		assert.Nil(t, subscription)
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestSubscription_Cancel(t *testing.T) {
	t.Run("stops delivery and unlistens the channel", func(t *testing.T) {
		listener := newFakeListener()
		sub := feed.NewWithListener(listener)
		defer sub.Close()

		events := make(chan feed.Event, 4)
		subscription, err := sub.Subscribe("meals", func(e feed.Event) { events <- e })
		require.NoError(t, err)

		subscription.Cancel()
		assert.False(t, listener.isListening("changefeed_meals"))

		listener.notify("changefeed_meals", wireEvent(t, feed.OpInsert, "meals", map[string]string{}))

		select {
		case <-events:
			t.Fatal("cancelled subscription must not receive events")
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		sub := feed.NewWithListener(newFakeListener())
		defer sub.Close()

		subscription, err := sub.Subscribe("meals", func(feed.Event) {})
		require.NoError(t, err)

		subscription.Cancel()
		subscription.Cancel()
	})

	t.Run("channel stays open while another subscription needs it", func(t *testing.T) {
		listener := newFakeListener()
		sub := feed.NewWithListener(listener)
		defer sub.Close()

		first, err := sub.Subscribe("meals", func(feed.Event) {})
		require.NoError(t, err)
		_, err = sub.Subscribe("meals", func(feed.Event) {})
		require.NoError(t, err)

		first.Cancel()
		assert.True(t, listener.isListening("changefeed_meals"))
	})
}

func TestSubscriber_Disconnect(t *testing.T) {
	t.Run("driver reconnect surfaces ErrDisconnected without retry", func(t *testing.T) {
		listener := newFakeListener()
		errs := make(chan error, 4)

		sub := feed.NewWithListener(listener, feed.WithErrorHandler(func(err error) { errs <- err }))
		defer sub.Close()

		_, err := sub.Subscribe("meals", func(feed.Event) {})
		require.NoError(t, err)

		// lib/pq delivers a nil notification after re-establishing a dropped
		// connection
		listener.ch <- nil

		select {
		case err := <-errs:
			assert.ErrorIs(t, err, feed.ErrDisconnected)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for disconnect report")
		}
	})

	t.Run("undecodable payloads are reported, not dispatched", func(t *testing.T) {
		listener := newFakeListener()
		errs := make(chan error, 4)
		events := make(chan feed.Event, 4)

		sub := feed.NewWithListener(listener, feed.WithErrorHandler(func(err error) { errs <- err }))
		defer sub.Close()

		_, err := sub.Subscribe("meals", func(e feed.Event) { events <- e })
		require.NoError(t, err)

		listener.notify("changefeed_meals", "{not json")

		select {
		case err := <-errs:
			assert.Error(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for decode error")
		}
		assert.Empty(t, events)
	})
}

func TestSubscriber_Close(t *testing.T) {
	listener := newFakeListener()
	sub := feed.NewWithListener(listener)

	_, err := sub.Subscribe("meals", func(feed.Event) {})
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close(), "close is idempotent")

	_, err = sub.Subscribe("meals", func(feed.Event) {})
	assert.ErrorIs(t, err, feed.ErrSubscriberClosed)
}
