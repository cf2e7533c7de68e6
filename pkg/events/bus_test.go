package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelBus_RoundTrip(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	messages, err := pubSub.Subscribe(ctx, AnalyticsTopic)
	require.NoError(t, err)

	logID := uint(7)
	require.NoError(t, NewChannelBus(pubSub).Publish(ctx, TurnCompleted("user-1", "conv", "msg", &logID, 10, 0, 2)))

	select {
	case msg := <-messages:
		msg.Ack()
		evt, err := Decode(msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, TypeTurnCompleted, evt.Type)
		assert.Equal(t, "user-1", evt.Data["session_user_id"])
		assert.EqualValues(t, 7, evt.Data["log_id"])
		assert.EqualValues(t, 2, evt.Data["citation_count"])
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestDecode_Rejects(t *testing.T) {
	_, err := Decode([]byte(`{`))
	assert.Error(t, err)
	_, err = Decode([]byte(`{"data":{}}`))
	assert.Error(t, err)
}

type recordingPublisher struct {
	got []Event
	err error
}

func (r *recordingPublisher) Publish(_ context.Context, e Event) error {
	r.got = append(r.got, e)
	return r.err
}

func TestFanout(t *testing.T) {
	ok := &recordingPublisher{}
	broken := &recordingPublisher{err: errors.New("nats down")}

	err := Fanout{ok, nil, broken}.Publish(context.Background(), FeedbackRated(3, "user-1", 5, true))

	assert.EqualError(t, err, "nats down")
	assert.Len(t, ok.got, 1)
	assert.Len(t, broken.got, 1)
	assert.Equal(t, TypeFeedbackRated, ok.got[0].EventType())
}
