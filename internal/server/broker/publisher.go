// Package broker publishes domain events to RabbitMQ over a single supervised
// connection that reconnects forever in the background.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

const (
	ExchangeAuth             = "auth_exchange"
	RoutingKeyUserRegistered = "auth.registered"

	DefaultReconnectDelay = 5 * time.Second
)

type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type Config struct {
	URL            string
	Exchanges      []string
	ReconnectDelay time.Duration
	// PublishTimeout bounds a single publish; zero leaves only the caller's deadline.
	PublishTimeout time.Duration
}

// Publisher owns the broker connection. The zero value is not usable; build
// one with NewPublisher and share it by pointer.
type Publisher struct {
	cfg    Config
	dial   DialFunc
	logger logging.Logger

	state atomic.Int32

	mu   sync.RWMutex
	conn Connection
	ch   Channel

	// broken is signalled by Publish when the channel turns out to be dead.
	broken chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewPublisher builds a disconnected publisher. dial may be nil, in which
// case DialAMQP is used.
func NewPublisher(cfg Config, dial DialFunc, l logging.Logger) *Publisher {
	if dial == nil {
		dial = DialAMQP
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	// UserRegistered events go to ExchangeAuth, so it is declared even when
	// the configured list omits it.
	if !slices.Contains(cfg.Exchanges, ExchangeAuth) {
		cfg.Exchanges = append([]string{ExchangeAuth}, cfg.Exchanges...)
	}
	return &Publisher{
		cfg:    cfg,
		dial:   dial,
		logger: l.With("module", "broker"),
		broken: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// State reports the connection state without blocking.
func (p *Publisher) State() State {
	return State(p.state.Load())
}

func (p *Publisher) setState(s State) {
	if old := State(p.state.Swap(int32(s))); old != s {
		p.logger.Info(context.Background(), "broker state changed", "from", old.String(), "to", s.String())
	}
}

// Start launches the connection supervisor. Only the first call has effect.
// The first attempt is made immediately; later ones wait ReconnectDelay.
func (p *Publisher) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(ctx)
		}()
	})
}

func (p *Publisher) run(ctx context.Context) {
	defer p.teardown()

	for {
		connClosed, chClosed, err := p.connect()
		if err != nil {
			p.logger.Warn(ctx, "broker connect failed", "error", err, "retry_in", p.cfg.ReconnectDelay.String())
			p.teardown()
		} else {
			p.logger.Info(ctx, "broker connected", "exchanges", p.cfg.Exchanges)
			select {
			case amqpErr := <-connClosed:
				p.logger.Warn(ctx, "broker connection closed", "error", amqpErr)
				p.teardown()
			case amqpErr := <-chClosed:
				p.logger.Warn(ctx, "broker channel closed", "error", amqpErr)
				p.teardown()
			case <-p.broken:
				p.logger.Warn(ctx, "broker channel unusable, reconnecting")
				p.teardown()
			case <-ctx.Done():
				return
			case <-p.done:
				return
			}
		}

		select {
		case <-time.After(p.cfg.ReconnectDelay):
		case <-ctx.Done():
			return
		case <-p.done:
			return
		}
	}
}

func (p *Publisher) connect() (connClosed, chClosed chan *amqp.Error, err error) {
	p.setState(Connecting)

	select {
	case <-p.broken:
	default:
	}

	conn, err := p.dial(p.cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	for _, name := range p.cfg.Exchanges {
		if err := ch.ExchangeDeclare(name, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, nil, fmt.Errorf("declare exchange %q: %w", name, err)
		}
	}

	connClosed = conn.NotifyClose(make(chan *amqp.Error, 1))
	chClosed = ch.NotifyClose(make(chan *amqp.Error, 1))

	p.mu.Lock()
	p.conn, p.ch = conn, ch
	p.mu.Unlock()

	p.setState(Connected)
	return connClosed, chClosed, nil
}

func (p *Publisher) teardown() {
	p.mu.Lock()
	ch, conn := p.ch, p.conn
	p.ch, p.conn = nil, nil
	p.mu.Unlock()

	if ch != nil {
		_ = ch.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}
	p.setState(Disconnected)
}

// Publish JSON-encodes payload and sends it as a persistent message. It
// returns common.ErrNotConnected without touching the network while the
// supervisor has no live channel.
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, payload any) error {
	if p.State() != Connected {
		p.logger.Warn(ctx, "publish skipped, broker not connected", "exchange", exchange, "routing_key", routingKey)
		return common.ErrNotConnected
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	p.mu.RLock()
	ch := p.ch
	p.mu.RUnlock()

	if ch == nil {
		return common.ErrNotConnected
	}

	if p.cfg.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.PublishTimeout)
		defer cancel()
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, exchange, routingKey, false, false, msg); err != nil {
		if isChannelClosed(err) {
			p.markBroken()
		}
		return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
	}

	return nil
}

func (p *Publisher) markBroken() {
	select {
	case p.broken <- struct{}{}:
	default:
	}
}

// isChannelClosed reports whether err means the channel can no longer be used.
func isChannelClosed(err error) bool {
	var amqpErr *amqp.Error
	return errors.As(err, &amqpErr) && amqpErr.Code == amqp.ChannelError
}

// PublishUserRegistered emits the UserRegistered event for a new account.
func (p *Publisher) PublishUserRegistered(ctx context.Context, id int64, email, passwordHash string) error {
	return p.Publish(ctx, ExchangeAuth, RoutingKeyUserRegistered, models.NewRegistrationEvent(id, email, passwordHash))
}

// Probe dials a throwaway connection and closes it. It does not touch the
// supervised connection.
func (p *Publisher) Probe(ctx context.Context) error {
	type result struct {
		conn Connection
		err  error
	}
	res := make(chan result, 1)
	go func() {
		conn, err := p.dial(p.cfg.URL)
		res <- result{conn: conn, err: err}
	}()

	select {
	case r := <-res:
		if r.err != nil {
			return fmt.Errorf("broker probe: %w", r.err)
		}
		return r.conn.Close()
	case <-ctx.Done():
		go func() {
			if r := <-res; r.err == nil {
				_ = r.conn.Close()
			}
		}()
		return fmt.Errorf("broker probe: %w", ctx.Err())
	}
}

// Close stops the supervisor and releases the connection. Safe to call more
// than once and before Start.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
		p.teardown()
	})
}
