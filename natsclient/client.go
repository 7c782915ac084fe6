package natsclient

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/comploplo/canopy-sub003/errors"
	"github.com/comploplo/canopy-sub003/metric"
	"github.com/comploplo/canopy-sub003/pkg/retry"
)

// ConnectionStatus is the state of the NATS connection.
type ConnectionStatus int32

// Connection states.
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned while the circuit breaker rejects attempts.
var ErrCircuitOpen = stderrors.New("circuit breaker is open")

// Client owns one NATS connection and its JetStream context. Repeated
// connection failures open a circuit breaker that fails fast until the
// backoff elapses.
type Client struct {
	url    string
	logger *slog.Logger
	status atomic.Int32

	mu   sync.RWMutex
	conn *nats.Conn
	js   jetstream.JetStream

	// circuit breaker
	failures         atomic.Int32
	circuitFailures  atomic.Int32
	circuitThreshold int32
	backoff          atomic.Int64 // time.Duration
	maxBackoff       time.Duration

	// connection
	maxReconnects int
	reconnectWait time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration
	connectRetry  retry.Config
	clientName    string
	username      string
	password      string
	token         string
	tlsConfig     *tls.Config

	metrics        *metric.Metrics
	onHealthChange func(bool)

	closeOnce sync.Once
}

// NewClient creates a client for url. It does not connect.
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Client", "NewClient", "check url")
	}

	c := &Client{
		url:              url,
		logger:           slog.Default(),
		circuitThreshold: 5,
		maxBackoff:       time.Minute,
		maxReconnects:    -1,
		reconnectWait:    2 * time.Second,
		timeout:          5 * time.Second,
		drainTimeout:     10 * time.Second,
		connectRetry:     retry.Quick(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	c.logger = c.logger.With("component", "natsclient", "url", url)
	c.setStatus(StatusDisconnected)
	c.backoff.Store(int64(time.Second))
	return c, nil
}

// URL returns the server URL.
func (c *Client) URL() string { return c.url }

// Status returns the connection status.
func (c *Client) Status() ConnectionStatus {
	return ConnectionStatus(c.status.Load())
}

func (c *Client) setStatus(s ConnectionStatus) {
	c.status.Store(int32(s))
}

// IsHealthy reports whether the client is connected.
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

// Failures returns the number of failures since the last success.
func (c *Client) Failures() int32 { return c.failures.Load() }

// Backoff returns how long an open circuit stays open.
func (c *Client) Backoff() time.Duration { return time.Duration(c.backoff.Load()) }

func (c *Client) recordFailure() {
	c.failures.Add(1)
	if c.circuitFailures.Add(1) < c.circuitThreshold {
		return
	}
	c.circuitFailures.Store(0)

	current := c.Backoff()
	next := min(current*2, c.maxBackoff)
	c.backoff.Store(int64(next))

	prev := c.Status()
	if prev != StatusCircuitOpen && c.status.CompareAndSwap(int32(prev), int32(StatusCircuitOpen)) {
		c.logger.Warn("circuit breaker opened", "failures", c.Failures(), "backoff", current)
		time.AfterFunc(current, c.halfOpen)
	}
}

// halfOpen lets the next Connect through after the backoff.
func (c *Client) halfOpen() {
	c.status.CompareAndSwap(int32(StatusCircuitOpen), int32(StatusDisconnected))
}

func (c *Client) resetCircuit() {
	c.failures.Store(0)
	c.circuitFailures.Store(0)
	c.backoff.Store(int64(time.Second))
	c.status.CompareAndSwap(int32(StatusCircuitOpen), int32(StatusDisconnected))
}

func (c *Client) connectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
		nats.ErrorHandler(c.handleError),
	}
	if c.username != "" && c.password != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}
	if c.clientName != "" {
		opts = append(opts, nats.Name(c.clientName))
	}
	if c.tlsConfig != nil {
		opts = append(opts, nats.Secure(c.tlsConfig))
	}
	return opts
}

// Connect dials the server, retrying per the configured policy.
func (c *Client) Connect(ctx context.Context) error {
	if c.Status() == StatusCircuitOpen {
		return ErrCircuitOpen
	}
	if c.IsHealthy() {
		return nil
	}

	c.setStatus(StatusConnecting)
	c.logger.Info("connecting to NATS")

	opts := c.connectionOptions()
	conn, err := retry.DoWithResult(ctx, c.connectRetry, func() (*nats.Conn, error) {
		if ctx.Err() != nil {
			return nil, retry.NonRetryable(ctx.Err())
		}
		conn, err := nats.Connect(c.url, opts...)
		if err != nil {
			c.logger.Debug("connect attempt failed", "error", err)
		}
		return conn, err
	})
	if err != nil {
		c.setStatus(StatusDisconnected)
		c.recordFailure()
		c.metrics.RecordNATSStatus(false)
		return errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrNoConnection, err),
			"Client", "Connect", "establish connection")
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		c.setStatus(StatusDisconnected)
		return errors.WrapTransient(err, "Client", "Connect", "initialize JetStream")
	}

	c.mu.Lock()
	c.conn = conn
	c.js = js
	c.mu.Unlock()

	c.setStatus(StatusConnected)
	c.resetCircuit()
	c.metrics.RecordNATSStatus(true)
	c.notifyHealth(true)
	c.logger.Info("connected to NATS")
	return nil
}

// WaitForConnection blocks until the client is connected or ctx ends.
func (c *Client) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if c.IsHealthy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrConnectionTimeout, ctx.Err()),
				"Client", "WaitForConnection", "wait")
		case <-ticker.C:
		}
	}
}

// Close drains and closes the connection. It is safe to call more than once.
func (c *Client) Close(ctx context.Context) error {
	var closeErr error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		conn := c.conn
		c.conn, c.js = nil, nil
		c.username, c.password, c.token = "", "", ""
		c.mu.Unlock()

		if conn == nil {
			c.setStatus(StatusDisconnected)
			return
		}

		done := make(chan error, 1)
		go func() { done <- conn.Drain() }()

		select {
		case err := <-done:
			if err != nil {
				closeErr = errors.Wrap(err, "Client", "Close", "drain connection")
			}
		case <-time.After(c.drainTimeout):
			closeErr = errors.WrapTransient(fmt.Errorf("drain timeout after %v", c.drainTimeout),
				"Client", "Close", "drain connection")
		case <-ctx.Done():
			closeErr = errors.Wrap(ctx.Err(), "Client", "Close", "drain connection")
		}

		conn.Close()
		c.setStatus(StatusDisconnected)
		c.metrics.RecordNATSStatus(false)
	})
	return closeErr
}

// JetStream returns the JetStream context of the live connection.
func (c *Client) JetStream() (jetstream.JetStream, error) {
	if c.Status() == StatusCircuitOpen {
		return nil, ErrCircuitOpen
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.js == nil {
		return nil, errors.WrapTransient(errors.ErrNoConnection, "Client", "JetStream", "get JetStream context")
	}
	return c.js, nil
}

// KeyValue returns the bucket described by cfg, creating it when absent.
func (c *Client) KeyValue(ctx context.Context, cfg jetstream.KeyValueConfig) (jetstream.KeyValue, error) {
	js, err := c.JetStream()
	if err != nil {
		return nil, err
	}

	bucket, err := js.CreateOrUpdateKeyValue(ctx, cfg)
	if err != nil {
		c.recordFailure()
		return nil, errors.WrapTransient(err, "Client", "KeyValue", "create bucket "+cfg.Bucket)
	}
	c.resetCircuit()
	return bucket, nil
}

// Bucket opens an existing bucket.
func (c *Client) Bucket(ctx context.Context, name string) (jetstream.KeyValue, error) {
	js, err := c.JetStream()
	if err != nil {
		return nil, err
	}

	bucket, err := js.KeyValue(ctx, name)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrBucketNotFound) {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrBucketNotFound, name),
				"Client", "Bucket", "open bucket")
		}
		c.recordFailure()
		return nil, errors.WrapTransient(err, "Client", "Bucket", "open bucket "+name)
	}
	c.resetCircuit()
	return bucket, nil
}

// ObjectStore returns the object store described by cfg, creating it when
// absent.
func (c *Client) ObjectStore(ctx context.Context, cfg jetstream.ObjectStoreConfig) (jetstream.ObjectStore, error) {
	js, err := c.JetStream()
	if err != nil {
		return nil, err
	}

	store, err := js.CreateOrUpdateObjectStore(ctx, cfg)
	if err != nil {
		c.recordFailure()
		return nil, errors.WrapTransient(err, "Client", "ObjectStore", "create object store "+cfg.Bucket)
	}
	c.resetCircuit()
	return store, nil
}

// OpenObjectStore opens an existing object store.
func (c *Client) OpenObjectStore(ctx context.Context, name string) (jetstream.ObjectStore, error) {
	js, err := c.JetStream()
	if err != nil {
		return nil, err
	}

	store, err := js.ObjectStore(ctx, name)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrBucketNotFound) {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrBucketNotFound, name),
				"Client", "OpenObjectStore", "open object store")
		}
		c.recordFailure()
		return nil, errors.WrapTransient(err, "Client", "OpenObjectStore", "open object store "+name)
	}
	c.resetCircuit()
	return store, nil
}

// DeleteBucket removes a bucket and its contents.
func (c *Client) DeleteBucket(ctx context.Context, name string) error {
	js, err := c.JetStream()
	if err != nil {
		return err
	}
	if err := js.DeleteKeyValue(ctx, name); err != nil {
		if stderrors.Is(err, jetstream.ErrBucketNotFound) {
			return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrBucketNotFound, name),
				"Client", "DeleteBucket", "delete bucket")
		}
		return errors.WrapTransient(err, "Client", "DeleteBucket", "delete bucket "+name)
	}
	return nil
}

func (c *Client) notifyHealth(healthy bool) {
	c.mu.RLock()
	fn := c.onHealthChange
	c.mu.RUnlock()
	if fn != nil {
		go fn(healthy)
	}
}

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	c.setStatus(StatusReconnecting)
	c.metrics.RecordNATSStatus(false)
	c.logger.Warn("disconnected from NATS", "error", err)
	c.notifyHealth(false)
}

func (c *Client) handleReconnect(_ *nats.Conn) {
	c.setStatus(StatusConnected)
	c.resetCircuit()
	c.metrics.RecordNATSStatus(true)
	c.metrics.RecordNATSReconnect()
	c.logger.Info("reconnected to NATS")
	c.notifyHealth(true)
}

func (c *Client) handleClosed(_ *nats.Conn) {
	c.setStatus(StatusDisconnected)
	c.notifyHealth(false)
}

func (c *Client) handleError(_ *nats.Conn, _ *nats.Subscription, err error) {
	c.logger.Error("NATS error", "error", err)
}
