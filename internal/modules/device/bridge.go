// README: Bridge is the server-side stand-in for the phone's permission and position APIs.
// Commands go out over the websocket when one is attached, otherwise through the long-poll outbox.
package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"locater/internal/metrics"
	"locater/internal/modules/location"
	"locater/internal/types"
)

const outboxSize = 16

// AuthorizationListener is notified whenever the device reports a permission answer.
type AuthorizationListener interface {
	AuthorizationChanged(state location.AuthorizationState)
}

type fixResult struct {
	fix location.Fix
	err error
}

type Bridge struct {
	log    zerolog.Logger
	now    func() time.Time
	outbox chan Message

	mu              sync.Mutex
	auth            location.AuthorizationState
	servicesEnabled bool
	pending         map[location.Token]chan fixResult
	listener        AuthorizationListener
	conn            *websocket.Conn

	writeMu sync.Mutex
}

func NewBridge(log zerolog.Logger) *Bridge {
	return &Bridge{
		log:             log,
		now:             time.Now,
		outbox:          make(chan Message, outboxSize),
		auth:            location.AuthUndetermined,
		servicesEnabled: true,
		pending:         make(map[location.Token]chan fixResult),
	}
}

func (b *Bridge) SetAuthorizationListener(l AuthorizationListener) {
	b.mu.Lock()
	b.listener = l
	b.mu.Unlock()
}

func (b *Bridge) ServicesEnabled(context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.servicesEnabled, nil
}

func (b *Bridge) CurrentAuthorization(context.Context) (location.AuthorizationState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.auth, nil
}

// RequestAuthorization asks the device to show its permission prompt. The
// answer arrives later through ReportAuthorization.
func (b *Bridge) RequestAuthorization(context.Context) error {
	b.send(Message{Type: MsgAuthorizationRequest})
	return nil
}

// RequestPosition asks the device for one fix and waits for the matching
// delivery. Cancelling ctx withdraws the request.
func (b *Bridge) RequestPosition(ctx context.Context, token location.Token) (location.Fix, error) {
	ch := make(chan fixResult, 1)
	b.mu.Lock()
	b.pending[token] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		if b.pending[token] == ch {
			delete(b.pending, token)
		}
		b.mu.Unlock()
	}()

	b.send(Message{Type: MsgPositionRequest, Token: token})

	select {
	case r := <-ch:
		return r.fix, r.err
	case <-ctx.Done():
		b.send(Message{Type: MsgPositionCancel, Token: token})
		return location.Fix{}, ctx.Err()
	}
}

// ReportAuthorization records the device's permission state and forwards it
// to the listener. servicesEnabled is optional.
func (b *Bridge) ReportAuthorization(state location.AuthorizationState, servicesEnabled *bool) {
	b.mu.Lock()
	b.auth = state
	if servicesEnabled != nil {
		b.servicesEnabled = *servicesEnabled
	}
	l := b.listener
	b.mu.Unlock()

	b.log.Info().Str("state", string(state)).Msg("device authorization reported")
	if l != nil {
		l.AuthorizationChanged(state)
	}
}

// DeliverPosition resolves the request identified by token. Each request is
// resolved at most once; anything else is reported as ErrStaleDelivery.
func (b *Bridge) DeliverPosition(token location.Token, fix location.Fix) error {
	if !fix.Point.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidPosition, fix.Point)
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = b.now()
	}
	return b.resolve(token, fixResult{fix: fix}, "position")
}

func (b *Bridge) DeliverPositionError(token location.Token, code string) error {
	return b.resolve(token, fixResult{err: positionError(code)}, "position_error")
}

func (b *Bridge) resolve(token location.Token, r fixResult, kind string) error {
	b.mu.Lock()
	ch, ok := b.pending[token]
	if ok {
		delete(b.pending, token)
	}
	b.mu.Unlock()

	if !ok {
		metrics.StaleDeliveriesTotal.WithLabelValues(kind).Inc()
		b.log.Debug().Uint64("token", uint64(token)).Str("kind", kind).Msg("dropping stale delivery")
		return ErrStaleDelivery
	}
	ch <- r
	return nil
}

// Handle dispatches one inbound report.
func (b *Bridge) Handle(msg Message) error {
	switch msg.Type {
	case MsgAuthorization:
		state, err := location.ParseAuthorizationState(string(msg.State))
		if err != nil {
			return err
		}
		b.ReportAuthorization(state, msg.ServicesEnabled)
		return nil
	case MsgPosition:
		fix := location.Fix{
			Point:    types.Point{Lat: msg.Latitude, Lng: msg.Longitude},
			Accuracy: msg.Accuracy,
		}
		if msg.Timestamp != nil {
			fix.Timestamp = *msg.Timestamp
		}
		return b.DeliverPosition(msg.Token, fix)
	case MsgPositionError:
		return b.DeliverPositionError(msg.Token, msg.Error)
	}
	return fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
}

// NextCommand blocks until a command is queued for a polling device.
// Position requests that were withdrawn or superseded while queued are
// skipped.
func (b *Bridge) NextCommand(ctx context.Context) (Message, error) {
	for {
		select {
		case msg := <-b.outbox:
			if b.withdrawn(msg) {
				b.log.Debug().Uint64("token", uint64(msg.Token)).Msg("skipping withdrawn position request")
				continue
			}
			return msg, nil
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

func (b *Bridge) withdrawn(msg Message) bool {
	if msg.Type != MsgPositionRequest {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.pending[msg.Token]
	return !ok
}

// PushState forwards a coordinator snapshot to an attached websocket. Polling
// devices read state over the REST API instead.
func (b *Bridge) PushState(snap location.Snapshot) {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return
	}
	if err := b.write(conn, Message{Type: MsgState, Snapshot: &snap}); err != nil {
		b.log.Debug().Err(err).Msg("state push failed")
	}
}

func (b *Bridge) send(msg Message) {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()

	if conn != nil {
		err := b.write(conn, msg)
		if err == nil {
			return
		}
		b.log.Warn().Err(err).Str("type", string(msg.Type)).Msg("websocket send failed, queueing")
	}
	b.enqueue(msg)
}

// enqueue never blocks. When the outbox is full the oldest command makes
// room, since the newest one reflects the current acquisition.
func (b *Bridge) enqueue(msg Message) {
	for {
		select {
		case b.outbox <- msg:
			return
		default:
		}
		select {
		case old := <-b.outbox:
			b.log.Warn().
				Str("type", string(old.Type)).
				Uint64("token", uint64(old.Token)).
				Msg("device outbox full, dropping oldest command")
		default:
		}
	}
}
