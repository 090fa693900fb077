package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indexer/internal/config"
	"indexer/internal/constants"
	"indexer/internal/indexer"
	"indexer/pkg/models"
)

type published struct {
	topic string
	n     models.Notification
}

type recordingProducer struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (p *recordingProducer) Publish(_ context.Context, topic string, n models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{topic: topic, n: n})
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func (p *recordingProducer) messages() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.sent...)
}

var fastRetry = config.RetryConfig{
	MaxAttempts:     3,
	InitialInterval: time.Millisecond,
	MaxInterval:     time.Millisecond,
	Multiplier:      1,
}

func testNotification() models.Notification {
	return models.NewNotificationBuilder().
		WithID("n-1").
		WithRoutingKey("record.created").
		WithEntityID("10.123/abc").
		WithAddressee("indexer").
		WithResolvingURL("http://example.org/record").
		Build()
}

func newTestDispatcher(h Handler, p Producer) *Dispatcher {
	return NewDispatcher(DispatcherConfig{
		Handler:     h,
		Producer:    p,
		RejectTopic: "rejected",
		DLQTopic:    "dlq",
		Retry:       fastRetry,
		ServiceName: "indexer-test",
	})
}

func TestDispatcher_Outcomes(t *testing.T) {
	tests := []struct {
		name      string
		outcomes  []models.Outcome
		wantCalls int
		want      models.Outcome
		wantTopic string
	}{
		{
			name:      "accepted commits without side channel",
			outcomes:  []models.Outcome{models.OutcomeAccepted},
			wantCalls: 1,
			want:      models.OutcomeAccepted,
		},
		{
			name:      "rejected is forwarded",
			outcomes:  []models.Outcome{models.OutcomeRejected},
			wantCalls: 1,
			want:      models.OutcomeRejected,
			wantTopic: "rejected",
		},
		{
			name:      "failure recovers on retry",
			outcomes:  []models.Outcome{models.OutcomeFailed, models.OutcomeAccepted},
			wantCalls: 2,
			want:      models.OutcomeAccepted,
		},
		{
			name:      "exhausted failures go to DLQ",
			outcomes:  []models.Outcome{models.OutcomeFailed, models.OutcomeFailed, models.OutcomeFailed},
			wantCalls: 3,
			want:      models.OutcomeFailed,
			wantTopic: "dlq",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			handler := func(context.Context, models.Notification) models.Outcome {
				o := tt.outcomes[calls]
				calls++
				return o
			}
			producer := &recordingProducer{}

			got, err := newTestDispatcher(handler, producer).Dispatch(context.Background(), testNotification(), "notifications")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCalls, calls)

			sent := producer.messages()
			if tt.wantTopic == "" {
				assert.Empty(t, sent)
				return
			}
			require.Len(t, sent, 1)
			assert.Equal(t, tt.wantTopic, sent[0].topic)
		})
	}
}

func TestDispatcher_AnnotatesCopies(t *testing.T) {
	original := testNotification()
	producer := &recordingProducer{}
	failing := func(context.Context, models.Notification) models.Outcome { return models.OutcomeFailed }

	_, err := newTestDispatcher(failing, producer).Dispatch(context.Background(), original, "notifications")
	require.NoError(t, err)

	sent := producer.messages()
	require.Len(t, sent, 1)
	md := sent[0].n.Metadata
	assert.Equal(t, "notifications", md[constants.DLQSourceTopicKey])
	assert.NotEmpty(t, md[constants.DLQReasonKey])
	_, err = time.Parse(time.RFC3339Nano, md[constants.DLQTimestampKey])
	assert.NoError(t, err)
	assert.Equal(t, original.Metadata[models.MetadataResolvingURL], md[models.MetadataResolvingURL])

	_, leaked := original.Metadata[constants.DLQReasonKey]
	assert.False(t, leaked, "original notification must not be annotated")

	rejecting := func(context.Context, models.Notification) models.Outcome { return models.OutcomeRejected }
	producer = &recordingProducer{}
	_, err = newTestDispatcher(rejecting, producer).Dispatch(context.Background(), original, "notifications")
	require.NoError(t, err)
	require.Len(t, producer.messages(), 1)
	assert.Equal(t, "indexer-test", producer.messages()[0].n.Metadata[constants.RejectedByKey])
}

func TestDispatcher_PanicGoesStraightToDLQ(t *testing.T) {
	calls := 0
	handler := func(context.Context, models.Notification) models.Outcome {
		calls++
		panic("boom")
	}
	producer := &recordingProducer{}

	got, err := newTestDispatcher(handler, producer).Dispatch(context.Background(), testNotification(), "notifications")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeFailed, got)
	assert.Equal(t, 1, calls)

	sent := producer.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].n.Metadata[constants.DLQReasonKey], "boom")
}

func TestDispatcher_NoSideChannels(t *testing.T) {
	for _, outcome := range []models.Outcome{models.OutcomeRejected, models.OutcomeFailed} {
		d := NewDispatcher(DispatcherConfig{
			Handler: func(context.Context, models.Notification) models.Outcome { return outcome },
			Retry:   fastRetry,
		})
		got, err := d.Dispatch(context.Background(), testNotification(), "notifications")
		assert.NoError(t, err)
		assert.Equal(t, outcome, got)
	}
}

func TestDispatcher_ProducerErrorSurfaces(t *testing.T) {
	producer := &recordingProducer{err: errors.New("broker down")}
	rejecting := func(context.Context, models.Notification) models.Outcome { return models.OutcomeRejected }

	got, err := newTestDispatcher(rejecting, producer).Dispatch(context.Background(), testNotification(), "notifications")
	assert.Equal(t, models.OutcomeRejected, got)
	assert.ErrorContains(t, err, "broker down")
}

func TestDispatcher_UnaddressedWithoutIDIsRejected(t *testing.T) {
	filter := indexer.NewAddressFilter("indexer")
	var seen models.Notification
	handler := func(_ context.Context, n models.Notification) models.Outcome {
		seen = n
		if !filter.Addressed(n) {
			return models.OutcomeRejected
		}
		return models.OutcomeAccepted
	}
	producer := &recordingProducer{}
	d := NewDispatcher(DispatcherConfig{
		Handler:  handler,
		Producer: producer,
		DLQTopic: "dlq",
		Retry:    fastRetry,
	})

	n := models.Notification{
		RoutingKey: "x",
		EntityID:   "10.123/abc",
		Addressees: []string{"other"},
		Metadata:   map[string]string{models.MetadataResolvingURL: "http://example.org/record"},
	}
	got, err := d.Dispatch(context.Background(), n, "notifications")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeRejected, got)
	assert.NotEmpty(t, seen.ID)
	assert.Empty(t, producer.messages())
}

func TestDispatcher_EnvelopeGapsReachHandler(t *testing.T) {
	calls := 0
	handler := func(context.Context, models.Notification) models.Outcome {
		calls++
		return models.OutcomeAccepted
	}
	producer := &recordingProducer{}

	got, err := newTestDispatcher(handler, producer).Dispatch(context.Background(), models.Notification{EntityID: "10.123/abc"}, "notifications")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAccepted, got)
	assert.Equal(t, 1, calls)
	assert.Empty(t, producer.messages())
}

func TestPolicyFromConfig(t *testing.T) {
	p := policyFromConfig(config.RetryConfig{})
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, time.Second, p.InitialInterval)

	p = policyFromConfig(config.RetryConfig{MaxAttempts: 5, Multiplier: 1.5})
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 1.5, p.Multiplier)
	assert.Equal(t, 30*time.Second, p.MaxInterval)
}
