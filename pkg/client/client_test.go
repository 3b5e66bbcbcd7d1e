package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/9triver/switchboard/internal/envelope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn answers each sent request through reply
type fakeConn struct {
	mu      sync.Mutex
	sent    [][]byte
	inbound [][]byte
	reply   func(req *envelope.Envelope) [][]byte
	closed  bool
}

func (f *fakeConn) send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, payload)
	if f.reply != nil {
		req, err := envelope.Decode(payload)
		if err != nil {
			return err
		}
		f.inbound = append(f.inbound, f.reply(req)...)
	}
	return nil
}

func (f *fakeConn) recv(timeout time.Duration) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inbound) == 0 {
		f.mu.Unlock()
		time.Sleep(timeout)
		f.mu.Lock()
		return nil, nil
	}
	next := f.inbound[0]
	f.inbound = f.inbound[1:]
	return next, nil
}

func (f *fakeConn) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func response(t *testing.T, id []byte, result any) []byte {
	data, err := envelope.Encode(envelope.NewResponse(id, result))
	require.NoError(t, err)
	return data
}

func TestClient_CallMatchesResponseByID(t *testing.T) {
	fc := &fakeConn{}
	fc.reply = func(req *envelope.Envelope) [][]byte {
		return [][]byte{
			[]byte(`garbage`),
			response(t, []byte(`"someone-else"`), "nope"),
			response(t, req.ID, "pong"),
		}
	}
	c := newClient(fc, Options{Identity: "tester"})

	resp, err := c.Call(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Response)
	assert.Equal(t, "tester", c.Identity())

	req, err := envelope.Decode(fc.sent[0])
	require.NoError(t, err)
	assert.Equal(t, envelope.KindMethod, req.Kind)
	assert.Equal(t, "ping", req.Method)
}

func TestClient_CallTimesOutWithoutReply(t *testing.T) {
	c := newClient(&fakeConn{}, Options{Timeout: 30 * time.Millisecond})

	_, err := c.Call(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestClient_CallSurfacesRemoteError(t *testing.T) {
	fc := &fakeConn{}
	fc.reply = func(req *envelope.Envelope) [][]byte {
		data, err := envelope.Encode(&envelope.Envelope{Kind: envelope.KindResponse, ID: req.ID, Error: "unknown method: x"})
		require.NoError(t, err)
		return [][]byte{data}
	}
	c := newClient(fc, Options{})

	resp, err := c.Call(context.Background(), "x")
	assert.ErrorIs(t, err, ErrRemote)
	require.NotNil(t, resp)
	assert.Equal(t, "unknown method: x", resp.Error)
}

func TestClient_SubscribeAndNotify(t *testing.T) {
	fc := &fakeConn{}
	c := newClient(fc, Options{})

	require.NoError(t, c.Subscribe("power", "s1"))
	require.NoError(t, c.Unsubscribe("power", "s1"))
	require.NoError(t, c.Notify("set_rgb", 1.0, 0.5, 0.25))
	c.Close()

	require.Len(t, fc.sent, 3)
	assert.JSONEq(t, `{"kind":"subscribe","id":"s1","type":"power"}`, string(fc.sent[0]))
	assert.JSONEq(t, `{"kind":"unsubscribe","id":"s1","type":"power"}`, string(fc.sent[1]))

	notify, err := envelope.Decode(fc.sent[2])
	require.NoError(t, err)
	assert.Equal(t, "set_rgb", notify.Method)
	assert.Len(t, notify.Args, 3)
	assert.True(t, fc.closed)
}

func TestClient_ListenDeliversEventsOnly(t *testing.T) {
	event, err := envelope.Encode(envelope.NewEvent(`"S1"`, "power", "on"))
	require.NoError(t, err)

	fc := &fakeConn{inbound: [][]byte{
		[]byte(`garbage`),
		response(t, []byte(`"r1"`), "pong"),
		event,
	}}
	c := newClient(fc, Options{Identity: "tester"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got []*envelope.Envelope
	err = c.Listen(ctx, func(ev *envelope.Envelope) {
		got = append(got, ev)
		cancel()
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "power", got[0].Type)
	assert.Equal(t, `"S1"`, string(got[0].ID))
	assert.Equal(t, "on", got[0].Response)
}
