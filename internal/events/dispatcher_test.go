package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPublishInvokesSubscribersInOrder(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	var got []string
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		got = append(got, "first:"+e.ID)
		return nil
	})
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		got = append(got, "second:"+e.ID)
		return nil
	})
	d.Subscribe(EventTicketDeleted, func(context.Context, Event) error {
		got = append(got, "wrong")
		return nil
	})

	assert.NoError(t, d.Publish(context.Background(), Event{ID: "e1", Type: EventTicketCreated}))
	assert.Equal(t, []string{"first:e1", "second:e1"}, got)
}

func TestPublishLogsHandlerErrorsAndContinues(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	d := NewInMemoryDispatcher(zap.New(core))

	called := false
	d.Subscribe(EventSnapshotDenied, func(context.Context, Event) error {
		return errors.New("audit sink offline")
	})
	d.Subscribe(EventSnapshotDenied, func(context.Context, Event) error {
		called = true
		return nil
	})

	assert.NoError(t, d.Publish(context.Background(), Event{ID: "e2", Type: EventSnapshotDenied}))
	assert.True(t, called)
	assert.Equal(t, 1, logs.FilterMessage("event handler failed").Len())
}
