package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStreamPublisher_XAdd(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	pub := NewRedisStreamPublisher(client, "pestops:events")
	ev := Event{
		Type:       InterventionSynchronized,
		EntityID:   "i1",
		ActorID:    "agent-1",
		OccurredAt: time.UnixMilli(1700000000000).UTC(),
	}
	require.NoError(t, pub.Publish(context.Background(), ev))

	msgs, err := client.XRange(context.Background(), "pestops:events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "intervention.synchronized", msgs[0].Values["type"])
	assert.Equal(t, "i1", msgs[0].Values["entity_id"])

	var decoded Event
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &decoded))
	assert.Equal(t, "agent-1", decoded.ActorID)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(context.Background(), addr, "", 0)
	assert.Error(t, err)
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, Event) error { return f.err }

type recordingPublisher struct{ got []Event }

func (r *recordingPublisher) Publish(_ context.Context, ev Event) error {
	r.got = append(r.got, ev)
	return nil
}

func TestMulti_DeliversToAllAndJoinsErrors(t *testing.T) {
	boom := errors.New("broker down")
	rec := &recordingPublisher{}

	err := Multi{failingPublisher{boom}, rec, Nop{}}.Publish(context.Background(), Event{Type: PhotoSynchronized, EntityID: "p1"})

	assert.ErrorIs(t, err, boom)
	require.Len(t, rec.got, 1)
	assert.Equal(t, "p1", rec.got[0].EntityID)
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "pestops/sites/site-9/changes", Topic("pestops", Event{SiteID: "site-9"}))
	assert.Equal(t, "pestops/changes", Topic("pestops", Event{}))
}
