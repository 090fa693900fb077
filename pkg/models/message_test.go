package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationBuilder(t *testing.T) {
	n := NewNotificationBuilder().
		WithRoutingKey("pidrecord.create").
		WithEntityID("10.123/abc").
		WithAddressee("indexer").
		WithResolvingURL("http://host/rec").
		Build()

	assert.NotEmpty(t, n.ID)
	assert.False(t, n.Timestamp.IsZero())
	assert.Equal(t, []string{"indexer"}, n.Addressees)

	url, ok := n.ResolvingURL()
	require.True(t, ok)
	assert.Equal(t, "http://host/rec", url)
}

func TestNotificationClone(t *testing.T) {
	n := NewNotificationBuilder().
		WithAddressee("indexer").
		WithMetadata("k", "v").
		Build()

	c := n.Clone()
	c.Metadata["k"] = "changed"
	c.Addressees[0] = "other"

	assert.Equal(t, "v", n.Metadata["k"])
	assert.Equal(t, "indexer", n.Addressees[0])
}

func TestNormalize(t *testing.T) {
	n := Notification{RoutingKey: "x", EntityID: "10.123/abc"}
	Normalize(&n)
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.Timestamp.IsZero())
	assert.Nil(t, n.Metadata, "metadata is left for the handler to judge")

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	kept := Notification{ID: "n-1", Timestamp: ts}
	Normalize(&kept)
	assert.Equal(t, "n-1", kept.ID)
	assert.Equal(t, ts, kept.Timestamp)

	Normalize(nil)
}

func TestParseOutcome(t *testing.T) {
	for _, o := range []Outcome{OutcomeAccepted, OutcomeRejected, OutcomeFailed} {
		parsed, ok := ParseOutcome(o.String())
		assert.True(t, ok)
		assert.Equal(t, o, parsed)
	}
	_, ok := ParseOutcome("SUCCEEDED")
	assert.False(t, ok)
}
