package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherRecordsEvents(t *testing.T) {
	t.Parallel()

	pub := New()
	ctx := context.Background()
	id1, err := pub.Publish(ctx, "digest.completed", map[string]any{"date": "2025-06-10", "count": 3})
	require.NoError(t, err)
	id2, err := pub.Publish(ctx, "digest.pruned", []string{"digest_2025-05-01.json"})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id1)
	assert.Equal(t, "memory-2", id2)

	events := pub.Events()
	require.Len(t, events, 2)
	assert.JSONEq(t, `{"date":"2025-06-10","count":3}`, string(events[0].Data))

	completed := pub.Events("digest.completed")
	require.Len(t, completed, 1)
	assert.Equal(t, id1, completed[0].ID)

	events[0].Type = "modified"
	assert.Equal(t, "digest.completed", pub.Events()[0].Type, "Events returns a copy")
}

func TestPublisherFailWith(t *testing.T) {
	t.Parallel()

	pub := New()
	pub.FailWith(errors.New("broker down"))
	_, err := pub.Publish(context.Background(), "digest.completed", nil)
	require.ErrorContains(t, err, "broker down")
	assert.Empty(t, pub.Events())

	pub.FailWith(nil)
	_, err = pub.Publish(context.Background(), "digest.completed", nil)
	require.NoError(t, err)
}

func TestPublisherRejectsUnencodablePayload(t *testing.T) {
	t.Parallel()

	_, err := New().Publish(context.Background(), "digest.completed", make(chan int))
	require.ErrorContains(t, err, "marshal payload")
}
