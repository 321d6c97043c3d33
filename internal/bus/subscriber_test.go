package bus

import (
	"context"
	"testing"

	"ocpi/internal/logging"
	"ocpi/internal/models"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBody(t *testing.T) {
	ev, err := Decode(&nats.Msg{
		Subject: "core.changes",
		Data:    []byte(`{"id":"e-1","event_type":"INSERT","entity_type":"Transaction","tenant_id":1,"new":{"id":5}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "e-1", ev.ID)
	assert.Equal(t, models.EventInsert, ev.EventType)
	assert.Equal(t, models.EntityTransaction, ev.EntityType)
	assert.JSONEq(t, `{"id":5}`, string(ev.New))
}

func TestDecodeFromSubjectAndHeader(t *testing.T) {
	msg := nats.NewMsg("core.changes.Connector.update")
	msg.Data = []byte(`{"tenant_id":1,"new":{"id":1},"old":{"id":1}}`)
	msg.Header.Set(nats.MsgIdHdr, "hdr-7")

	ev, err := Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, "hdr-7", ev.ID)
	assert.Equal(t, models.EventUpdate, ev.EventType)
	assert.Equal(t, models.EntityConnector, ev.EntityType)
}

func TestDecodeRejects(t *testing.T) {
	_, err := Decode(&nats.Msg{Subject: "x", Data: []byte(`not json`)})
	assert.Error(t, err)

	_, err = Decode(&nats.Msg{Subject: "x", Data: []byte(`{"new":{}}`)})
	assert.Error(t, err)

	_, err = Decode(&nats.Msg{Subject: "a.Location.INSERT", Data: []byte(`{}`)})
	assert.Error(t, err)
}

type recordingDispatcher struct{ events []models.ChangeEvent }

func (r *recordingDispatcher) Dispatch(_ context.Context, ev models.ChangeEvent) {
	r.events = append(r.events, ev)
}

func TestHandleDropsMalformed(t *testing.T) {
	d := &recordingDispatcher{}
	s := NewSubscriber(nil, "core.changes.>", "q", d, logging.Nop())

	s.handle(&nats.Msg{Subject: "core.changes.Location.INSERT", Data: []byte(`{"new":{"id":1}}`)})
	s.handle(&nats.Msg{Subject: "core.changes.Location.INSERT", Data: []byte(`{`)})

	require.Len(t, d.events, 1)
	assert.Equal(t, models.EntityLocation, d.events[0].EntityType)
}
