// README: Coordinator owns the single in-flight acquisition: permission negotiation, a bounded
// wait for a fix, reverse geocoding, and the observable "current" state.
package location

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"locater/internal/metrics"
	"locater/internal/types"
)

const DefaultFixTimeout = 15 * time.Second

type Options struct {
	// FixTimeout bounds the wait for a position fix. Defaults to DefaultFixTimeout.
	FixTimeout time.Duration
	// AuthorizationTimeout caps the wait for a permission prompt answer.
	// Zero waits until the caller's context is done.
	AuthorizationTimeout time.Duration
	// GeocodeTimeout bounds reverse geocoding. Zero uses the caller's context only.
	GeocodeTimeout time.Duration
}

// authPrompt is one outstanding authorization request. done is closed exactly
// once; state and err are written before the close.
type authPrompt struct {
	done  chan struct{}
	state AuthorizationState
	err   error
}

type fixResult struct {
	fix Fix
	err error
}

type Coordinator struct {
	perms    PermissionProvider
	source   PositionSource
	geocoder ReverseGeocoder
	opts     Options
	log      zerolog.Logger
	now      func() time.Time
	newID    func() types.ID

	mu       sync.Mutex
	gen      Token
	inflight context.CancelFunc
	state    Snapshot
	prompt   *authPrompt
	subs     map[int]chan Snapshot
	nextSub  int
}

// NewCoordinator wires the coordinator to its collaborators. geocoder may be nil,
// in which case entries are produced without street/place labels.
func NewCoordinator(perms PermissionProvider, source PositionSource, geocoder ReverseGeocoder, opts Options, log zerolog.Logger) *Coordinator {
	if opts.FixTimeout <= 0 {
		opts.FixTimeout = DefaultFixTimeout
	}
	return &Coordinator{
		perms:    perms,
		source:   source,
		geocoder: geocoder,
		opts:     opts,
		log:      log,
		now:      time.Now,
		newID:    func() types.ID { return types.ID(uuid.NewString()) },
		state:    Snapshot{Authorization: AuthUndetermined},
		subs:     make(map[int]chan Snapshot),
	}
}

// Acquire produces a fresh Entry for the device's current position. A call
// supersedes any acquisition still in flight; the superseded caller receives
// ErrSuperseded and its late results never reach the observable state.
func (c *Coordinator) Acquire(ctx context.Context) (Entry, error) {
	start := time.Now()
	token, reqCtx, finish := c.begin(ctx)
	defer finish()

	entry, err := c.acquire(reqCtx, token)
	if err != nil {
		err = c.classify(ctx, token, err)
	}

	metrics.AcquisitionsTotal.WithLabelValues(Outcome(err)).Inc()
	metrics.AcquisitionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		c.log.Warn().Err(err).Uint64("token", uint64(token)).Msg("location acquisition failed")
		return Entry{}, err
	}
	c.log.Info().
		Uint64("token", uint64(token)).
		Str("entry_id", string(entry.ID)).
		Bool("labelled", entry.Street != nil || entry.Place != nil).
		Msg("location acquired")
	return entry, nil
}

// Current returns a copy of the observable state.
func (c *Coordinator) Current() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentEntry returns the entry produced by the latest successful acquisition.
func (c *Coordinator) CurrentEntry() (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Entry == nil {
		return Entry{}, ErrLocationUnavailable
	}
	return *c.state.Entry, nil
}

// AuthorizationChanged is the permission provider's callback. It records the
// state and resolves an outstanding prompt once the user has answered.
func (c *Coordinator) AuthorizationChanged(state AuthorizationState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Authorization != state {
		c.state.Authorization = state
		c.publishLocked()
	}
	if p := c.prompt; p != nil && state != AuthUndetermined {
		c.resolvePromptLocked(p, state, nil)
	}
}

// Subscribe streams state changes, latest value wins. The current state is
// delivered immediately. The returned func unsubscribes and closes the channel.
func (c *Coordinator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.state
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(ch)
		}
	}
}

// begin resets the observable state before the first suspension point.
func (c *Coordinator) begin(parent context.Context) (Token, context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	c.mu.Lock()
	if c.inflight != nil {
		c.inflight()
	}
	c.gen++
	token := c.gen
	c.inflight = cancel
	c.state = Snapshot{Generation: token, Authorization: c.state.Authorization}
	c.publishLocked()
	c.mu.Unlock()

	return token, ctx, func() {
		cancel()
		c.mu.Lock()
		if c.gen == token {
			c.inflight = nil
		}
		c.mu.Unlock()
	}
}

func (c *Coordinator) acquire(ctx context.Context, token Token) (Entry, error) {
	enabled, err := c.perms.ServicesEnabled(ctx)
	if err != nil {
		return Entry{}, &UnknownError{Cause: err}
	}
	if !enabled {
		return Entry{}, ErrServicesDisabled
	}

	if err := c.authorize(ctx); err != nil {
		return Entry{}, err
	}

	fix, err := c.fetchFix(ctx, token)
	if err != nil {
		return Entry{}, err
	}
	if !c.commit(token, func(s *Snapshot) { s.Location = &fix }) {
		return Entry{}, ErrSuperseded
	}

	street, place := c.label(ctx, fix.Point)
	entry := Entry{
		ID:        c.newID(),
		Timestamp: c.now(),
		Latitude:  fix.Point.Lat,
		Longitude: fix.Point.Lng,
		Street:    street,
		Place:     place,
	}
	if !c.commit(token, func(s *Snapshot) {
		s.Street = street
		s.Place = place
		s.Entry = &entry
	}) {
		return Entry{}, ErrSuperseded
	}
	return entry, nil
}

// classify turns context errors into the caller-facing taxonomy.
func (c *Coordinator) classify(parent context.Context, token Token, err error) error {
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if !c.isCurrent(token) {
		return ErrSuperseded
	}
	if parent.Err() != nil {
		return &UnknownError{Cause: parent.Err()}
	}
	return err
}

func (c *Coordinator) isCurrent(token Token) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == token
}

// commit applies fn only if token still names the current acquisition.
func (c *Coordinator) commit(token Token, fn func(*Snapshot)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != token {
		return false
	}
	fn(&c.state)
	c.publishLocked()
	return true
}

func (c *Coordinator) authorize(ctx context.Context) error {
	state, err := c.perms.CurrentAuthorization(ctx)
	if err != nil {
		return &UnknownError{Cause: err}
	}

	// An answer delivered through AuthorizationChanged is never older than
	// an undetermined read from the provider.
	c.mu.Lock()
	switch {
	case state == AuthUndetermined && c.state.Authorization != AuthUndetermined:
		state = c.state.Authorization
	case c.state.Authorization != state:
		c.state.Authorization = state
		c.publishLocked()
	}
	c.mu.Unlock()

	if state == AuthUndetermined {
		return c.awaitAuthorization(ctx)
	}
	return decide(state)
}

// awaitAuthorization issues one prompt, or joins the prompt already outstanding.
func (c *Coordinator) awaitAuthorization(ctx context.Context) error {
	c.mu.Lock()
	if s := c.state.Authorization; s != AuthUndetermined {
		c.mu.Unlock()
		return decide(s)
	}
	p := c.prompt
	issue := p == nil
	if issue {
		p = &authPrompt{done: make(chan struct{})}
		c.prompt = p
	}
	c.mu.Unlock()

	if issue {
		c.log.Debug().Msg("requesting location authorization")
		if err := c.perms.RequestAuthorization(ctx); err != nil {
			c.mu.Lock()
			c.resolvePromptLocked(p, AuthUndetermined, &UnknownError{Cause: err})
			c.mu.Unlock()
		}
	} else {
		c.log.Debug().Msg("joining outstanding authorization prompt")
	}

	var expired <-chan time.Time
	if c.opts.AuthorizationTimeout > 0 {
		t := time.NewTimer(c.opts.AuthorizationTimeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case <-p.done:
	case <-ctx.Done():
		return ctx.Err()
	case <-expired:
		c.mu.Lock()
		c.resolvePromptLocked(p, AuthUndetermined, fmt.Errorf("%w: authorization prompt unanswered", ErrTimeout))
		c.mu.Unlock()
	}
	if p.err != nil {
		return p.err
	}
	return decide(p.state)
}

func (c *Coordinator) resolvePromptLocked(p *authPrompt, state AuthorizationState, err error) {
	if c.prompt == p {
		c.prompt = nil
	}
	select {
	case <-p.done:
		return
	default:
	}
	p.state, p.err = state, err
	close(p.done)
}

func decide(state AuthorizationState) error {
	switch {
	case state.Authorized():
		return nil
	case state.Refused():
		return ErrPermissionDenied
	}
	return &UnknownError{Cause: fmt.Errorf("unexpected authorization state %q", state)}
}

// fetchFix races one position request against the fix timeout.
func (c *Coordinator) fetchFix(ctx context.Context, token Token) (Fix, error) {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan fixResult, 1)
	go func() {
		fix, err := c.source.RequestPosition(reqCtx, token)
		results <- fixResult{fix: fix, err: err}
	}()

	timer := time.NewTimer(c.opts.FixTimeout)
	defer timer.Stop()

	select {
	case r := <-results:
		switch {
		case r.err == nil:
			return r.fix, nil
		case ctx.Err() != nil:
			return Fix{}, ctx.Err()
		case errors.Is(r.err, ErrPermissionDenied), errors.Is(r.err, ErrServicesDisabled):
			return Fix{}, r.err
		}
		return Fix{}, &UnknownError{Cause: r.err}
	case <-timer.C:
		c.log.Warn().
			Uint64("token", uint64(token)).
			Dur("timeout", c.opts.FixTimeout).
			Msg("no position fix before timeout")
		return Fix{}, ErrTimeout
	case <-ctx.Done():
		return Fix{}, ctx.Err()
	}
}

// label reverse-geocodes p. Failures degrade to an unlabelled entry. A
// lookup cut short by a superseded or canceled acquisition is not a failure.
func (c *Coordinator) label(parent context.Context, p types.Point) (street, place *string) {
	if c.geocoder == nil {
		return nil, nil
	}
	ctx := parent
	if c.opts.GeocodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, c.opts.GeocodeTimeout)
		defer cancel()
	}

	marks, err := c.geocoder.ReverseGeocode(ctx, p)
	if err != nil {
		if parent.Err() != nil {
			return nil, nil
		}
		metrics.GeocodingDegradedTotal.Inc()
		c.log.Warn().
			Err(fmt.Errorf("%w: %v", ErrGeocodingDegraded, err)).
			Str("point", p.String()).
			Msg("entry produced without street/place")
		return nil, nil
	}
	if len(marks) == 0 {
		return nil, nil
	}
	return labels(marks[0])
}

func labels(m Placemark) (street, place *string) {
	if v := strings.TrimSpace(m.Thoroughfare); v != "" {
		street = &v
	}
	var parts []string
	for _, v := range []string{m.Locality, m.AdministrativeArea} {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) > 0 {
		joined := strings.Join(parts, ", ")
		place = &joined
	}
	return street, place
}

func (c *Coordinator) publishLocked() {
	snap := c.state
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
