package conversation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTranscriptStore(t *testing.T, maxMessages int64) *TranscriptStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewTranscriptStore(client, maxMessages, time.Hour)
}

func TestTranscriptAppendAndList(t *testing.T) {
	store := newTranscriptStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "conv-1", TranscriptMessage{Sender: "user", Text: "hello"}))
	require.NoError(t, store.Append(ctx, "conv-1", TranscriptMessage{Sender: "bot", Text: "hi there"}))

	msgs, err := store.List(ctx, "conv-1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Sender)
	assert.Equal(t, "hello", msgs[0].Text)
	assert.NotEmpty(t, msgs[0].ID, "missing IDs are filled in")
	assert.False(t, msgs[0].Timestamp.IsZero())
	assert.Equal(t, "hi there", msgs[1].Text)
}

func TestTranscriptListLimit(t *testing.T) {
	store := newTranscriptStore(t, 0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, "conv-1", TranscriptMessage{Sender: "user", Text: fmt.Sprintf("m%d", i)}))
	}

	msgs, err := store.List(ctx, "conv-1", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m3", msgs[0].Text)
	assert.Equal(t, "m4", msgs[1].Text)
}

func TestTranscriptTrimsToMax(t *testing.T) {
	store := newTranscriptStore(t, 3)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		require.NoError(t, store.Append(ctx, "conv-1", TranscriptMessage{Sender: "user", Text: fmt.Sprintf("m%d", i)}))
	}

	msgs, err := store.List(ctx, "conv-1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m3", msgs[0].Text)
}

func TestTranscriptIsolatedByConversation(t *testing.T) {
	store := newTranscriptStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "conv-1", TranscriptMessage{Sender: "user", Text: "hello"}))

	msgs, err := store.List(ctx, "conv-2", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestTranscriptClear(t *testing.T) {
	store := newTranscriptStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "conv-1", TranscriptMessage{Sender: "user", Text: "hello"}))
	require.NoError(t, store.Clear(ctx, "conv-1"))

	msgs, err := store.List(ctx, "conv-1", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestTranscriptNilStoreIsSafe(t *testing.T) {
	var store *TranscriptStore

	assert.NoError(t, store.Append(context.Background(), "conv-1", TranscriptMessage{}))
	msgs, err := store.List(context.Background(), "conv-1", 0)
	assert.NoError(t, err)
	assert.Nil(t, msgs)
}

func TestTranscriptRequiresConversationID(t *testing.T) {
	store := newTranscriptStore(t, 0)

	assert.Error(t, store.Append(context.Background(), "", TranscriptMessage{}))
	_, err := store.List(context.Background(), "", 0)
	assert.Error(t, err)
}
