package device

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locater/internal/modules/location"
	"locater/internal/types"
)

type recordingListener struct {
	mu     sync.Mutex
	states []location.AuthorizationState
}

func (l *recordingListener) AuthorizationChanged(s location.AuthorizationState) {
	l.mu.Lock()
	l.states = append(l.states, s)
	l.mu.Unlock()
}

func nextCommand(t *testing.T, b *Bridge) Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := b.NextCommand(ctx)
	require.NoError(t, err)
	return msg
}

func TestBridgeDefaults(t *testing.T) {
	b := NewBridge(zerolog.Nop())

	enabled, err := b.ServicesEnabled(context.Background())
	require.NoError(t, err)
	assert.True(t, enabled)

	state, err := b.CurrentAuthorization(context.Background())
	require.NoError(t, err)
	assert.Equal(t, location.AuthUndetermined, state)
}

func TestBridgeReportAuthorizationNotifiesListener(t *testing.T) {
	b := NewBridge(zerolog.Nop())
	l := &recordingListener{}
	b.SetAuthorizationListener(l)

	require.NoError(t, b.RequestAuthorization(context.Background()))
	assert.Equal(t, MsgAuthorizationRequest, nextCommand(t, b).Type)

	disabled := false
	require.NoError(t, b.Handle(Message{Type: MsgAuthorization, State: location.AuthDenied, ServicesEnabled: &disabled}))

	state, _ := b.CurrentAuthorization(context.Background())
	assert.Equal(t, location.AuthDenied, state)
	enabled, _ := b.ServicesEnabled(context.Background())
	assert.False(t, enabled)
	assert.Equal(t, []location.AuthorizationState{location.AuthDenied}, l.states)

	assert.Error(t, b.Handle(Message{Type: MsgAuthorization, State: "maybe"}))
}

func TestBridgeRequestPositionResolvedOnce(t *testing.T) {
	b := NewBridge(zerolog.Nop())

	type result struct {
		fix location.Fix
		err error
	}
	done := make(chan result, 1)
	go func() {
		fix, err := b.RequestPosition(context.Background(), 7)
		done <- result{fix, err}
	}()

	cmd := nextCommand(t, b)
	assert.Equal(t, MsgPositionRequest, cmd.Type)
	assert.Equal(t, location.Token(7), cmd.Token)

	p := types.Point{Lat: 51.5, Lng: -0.12}
	require.NoError(t, b.DeliverPosition(7, location.Fix{Point: p, Accuracy: 10}))

	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, p, r.fix.Point)
	assert.False(t, r.fix.Timestamp.IsZero())

	assert.ErrorIs(t, b.DeliverPosition(7, location.Fix{Point: p}), ErrStaleDelivery)
}

func TestBridgeRejectsInvalidPosition(t *testing.T) {
	b := NewBridge(zerolog.Nop())
	err := b.DeliverPosition(1, location.Fix{Point: types.Point{Lat: 91, Lng: 0}})
	assert.ErrorIs(t, err, ErrInvalidPosition)
}

func TestBridgePositionErrorMapsCodes(t *testing.T) {
	b := NewBridge(zerolog.Nop())
	done := make(chan error, 1)
	go func() {
		_, err := b.RequestPosition(context.Background(), 3)
		done <- err
	}()
	nextCommand(t, b)

	require.NoError(t, b.Handle(Message{Type: MsgPositionError, Token: 3, Error: CodeDenied}))
	assert.ErrorIs(t, <-done, location.ErrPermissionDenied)
}

func TestBridgeCancelSendsWithdrawal(t *testing.T) {
	b := NewBridge(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := b.RequestPosition(ctx, 9)
		done <- err
	}()
	nextCommand(t, b)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	cmd := nextCommand(t, b)
	assert.Equal(t, MsgPositionCancel, cmd.Type)
	assert.Equal(t, location.Token(9), cmd.Token)

	// A fix arriving after withdrawal is dropped.
	assert.ErrorIs(t, b.DeliverPosition(9, location.Fix{Point: types.Point{Lat: 1, Lng: 1}}), ErrStaleDelivery)
}

func TestBridgeFullOutboxDropsOldest(t *testing.T) {
	b := NewBridge(zerolog.Nop())
	const extra = 3
	for i := 1; i <= outboxSize+extra; i++ {
		b.enqueue(Message{Type: MsgAuthorizationRequest, Token: location.Token(i)})
	}

	first := nextCommand(t, b)
	assert.Equal(t, location.Token(extra+1), first.Token)
	var last Message
	for range outboxSize - 1 {
		last = nextCommand(t, b)
	}
	assert.Equal(t, location.Token(outboxSize+extra), last.Token)
}

func TestBridgeSkipsWithdrawnRequests(t *testing.T) {
	b := NewBridge(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := b.RequestPosition(ctx, 4)
		done <- err
	}()
	require.Eventually(t, func() bool { return len(b.outbox) == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	cmd := nextCommand(t, b)
	assert.Equal(t, MsgPositionCancel, cmd.Type)
	assert.Equal(t, location.Token(4), cmd.Token)
}

func TestBridgeUnknownMessage(t *testing.T) {
	b := NewBridge(zerolog.Nop())
	assert.ErrorIs(t, b.Handle(Message{Type: "reboot"}), ErrUnknownMessage)
}

func TestBridgeWebsocketSession(t *testing.T) {
	b := NewBridge(zerolog.Nop())
	srv := httptest.NewServer(http.HandlerFunc(b.ServeWS))
	defer srv.Close()

	// Queued before the session attaches; flushed on attach.
	require.NoError(t, b.RequestAuthorization(context.Background()))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MsgAuthorizationRequest, msg.Type)

	require.NoError(t, conn.WriteJSON(Message{Type: MsgAuthorization, State: location.AuthAuthorizedWhenInUse}))
	require.Eventually(t, func() bool {
		s, _ := b.CurrentAuthorization(context.Background())
		return s == location.AuthAuthorizedWhenInUse
	}, time.Second, 10*time.Millisecond)

	done := make(chan location.Fix, 1)
	go func() {
		fix, err := b.RequestPosition(context.Background(), 42)
		if err == nil {
			done <- fix
		}
	}()

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MsgPositionRequest, msg.Type)
	require.NoError(t, conn.WriteJSON(Message{Type: MsgPosition, Token: msg.Token, Latitude: 40.7, Longitude: -74}))

	select {
	case fix := <-done:
		assert.Equal(t, types.Point{Lat: 40.7, Lng: -74}, fix.Point)
	case <-time.After(2 * time.Second):
		t.Fatal("position was not delivered over websocket")
	}

	b.PushState(location.Snapshot{Generation: 42})
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MsgState, msg.Type)
	require.NotNil(t, msg.Snapshot)
	assert.Equal(t, location.Token(42), msg.Snapshot.Generation)
}
