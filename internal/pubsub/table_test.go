package pubsub

import (
	"testing"

	"github.com/9triver/switchboard/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delivery struct {
	topic string
	sub   Subscription
	data  any
}

type recordingSink struct {
	got []delivery
}

func (r *recordingSink) Deliver(topic string, sub Subscription, data any) {
	r.got = append(r.got, delivery{topic: topic, sub: sub, data: data})
}

func TestTable_SubscribeThenUnsubscribeIsIdempotent(t *testing.T) {
	table := NewTable()
	table.Subscribe("power", "S", "C")

	assert.Equal(t, 1, table.Unsubscribe("power", "S"))
	for _, s := range table.Subscribers("power") {
		assert.NotEqual(t, "S", s.ID)
	}

	assert.Equal(t, 0, table.Unsubscribe("power", "S"))
	assert.Equal(t, 0, table.Unsubscribe("never", "S"))
	assert.Empty(t, table.Topics())
}

func TestTable_EmitNotifiesEverySubscriberInOrder(t *testing.T) {
	table := NewTable()
	table.Subscribe("power", "S1", "C1")
	table.Subscribe("power", "S2", "C2")
	table.Subscribe("color", "S3", "C3")

	sink := &recordingSink{}
	n := table.Emit("power", "on", sink)

	assert.Equal(t, 2, n)
	require.Len(t, sink.got, 2)
	assert.Equal(t, transport.Identity("C1"), sink.got[0].sub.Sender)
	assert.Equal(t, transport.Identity("C2"), sink.got[1].sub.Sender)
	assert.Equal(t, "on", sink.got[1].data)
}

func TestTable_EmitWithoutSubscribersNotifiesNobody(t *testing.T) {
	table := NewTable()
	sink := &recordingSink{}

	assert.Equal(t, 0, table.Emit("power", "on", sink))
	assert.Empty(t, sink.got)
}

func TestTable_DuplicateSubscribeKeepsBothRecords(t *testing.T) {
	table := NewTable()
	table.Subscribe("power", "S", "C1")
	table.Subscribe("power", "S", "C1")
	table.Subscribe("power", "S", "C2")

	assert.Len(t, table.Subscribers("power"), 3)
	assert.Equal(t, 3, table.Emit("power", nil, &recordingSink{}))

	// same id across clients is indistinguishable: all are removed together
	assert.Equal(t, 3, table.Unsubscribe("power", "S"))
	assert.Equal(t, 0, table.Len())
}

func TestTable_UnsubscribeKeepsOtherRecordsInOrder(t *testing.T) {
	table := NewTable()
	table.Subscribe("power", "S1", "C1")
	table.Subscribe("power", "S2", "C2")
	table.Subscribe("power", "S3", "C3")

	table.Unsubscribe("power", "S2")

	subs := table.Subscribers("power")
	require.Len(t, subs, 2)
	assert.Equal(t, "S1", subs[0].ID)
	assert.Equal(t, "S3", subs[1].ID)
}

func TestTable_EmitIteratesSnapshot(t *testing.T) {
	table := NewTable()
	table.Subscribe("power", "S1", "C1")
	table.Subscribe("power", "S2", "C2")

	var seen []string
	sink := SinkFunc(func(topic string, sub Subscription, _ any) {
		seen = append(seen, sub.ID)
		table.Unsubscribe(topic, "S2")
		table.Subscribe(topic, "S9", "C9")
	})

	assert.Equal(t, 2, table.Emit("power", nil, sink))
	assert.Equal(t, []string{"S1", "S2"}, seen)
}
