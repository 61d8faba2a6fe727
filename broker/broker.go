package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/naspanel/nasmon/encoding"
	"github.com/naspanel/nasmon/session"
	"github.com/naspanel/nasmon/topic"
	"github.com/naspanel/nasmon/types/message"
)

// Broker is an embedded MQTT 3.1.1 server: TCP listener, session registry,
// topic router and retained store behind a single lifecycle.
type Broker struct {
	cfg *Config
	log *slog.Logger

	router   *topic.Router
	retained *topic.RetainedStore
	sessions *session.Manager
	auth     *authenticator
	stats    *stats

	mu      sync.RWMutex
	clients map[string]*client
	// conns holds every accepted connection, including ones still in
	// the CONNECT handshake, so Stop can force-close them
	conns map[net.Conn]struct{}

	listener   net.Listener
	metricsSrv *http.Server

	wg       sync.WaitGroup // accept, sweep, metrics
	clientWG sync.WaitGroup
	done     chan struct{}
	started  atomic.Bool
	stopped  atomic.Bool
	stopOnce sync.Once
}

// New creates a broker from the given config
func New(cfg *Config) *Broker {
	cfg = cfg.withDefaults()

	auth := newAuthenticator()
	if cfg.Username != "" && cfg.Password != "" {
		auth.AddUser(cfg.Username, cfg.Password)
	}

	return &Broker{
		cfg:      cfg,
		log:      cfg.Logger,
		router:   topic.NewRouter(),
		retained: topic.NewRetainedStore(),
		sessions: session.NewManager(),
		auth:     auth,
		stats:    newStats(),
		clients:  make(map[string]*client),
		conns:    make(map[net.Conn]struct{}),
		done:     make(chan struct{}),
	}
}

// Start binds the listen address and launches the accept loop. A bind
// failure is fatal and reported as ErrBind. Cancelling ctx stops the
// broker.
func (b *Broker) Start(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return ErrBrokerClosed
	}

	ln, err := net.Listen("tcp", b.cfg.Addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBind, b.cfg.Addr, err)
	}
	b.listener = ln

	b.wg.Add(2)
	go b.acceptLoop()
	go b.sweepLoop()

	if b.cfg.MetricsAddr != "" {
		b.serveMetrics()
	}

	go func() {
		select {
		case <-ctx.Done():
			b.Stop()
		case <-b.done:
		}
	}()

	b.log.Info("broker listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound listen address
func (b *Broker) Addr() net.Addr {
	if b.listener == nil {
		return nil
	}
	return b.listener.Addr()
}

func (b *Broker) acceptLoop() {
	defer b.wg.Done()

	for {
		conn, err := b.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-b.done:
				return
			default:
			}
			b.log.Warn("accept failed", "error", err)
			continue
		}

		b.stats.ActiveConnections.Inc()
		b.trackConn(conn)
		b.clientWG.Add(1)
		go func() {
			defer b.clientWG.Done()
			defer b.untrackConn(conn)
			newClient(b, conn).run()
		}()
	}
}

// sweepLoop enforces keep-alive windows and QoS 1 retransmit deadlines
func (b *Broker) sweepLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			b.sweep(now)
		case <-b.done:
			return
		}
	}
}

func (b *Broker) sweep(now time.Time) {
	for _, c := range b.clientList() {
		sess := c.sess
		if sess == nil || sess.State() != session.StateConnected {
			continue
		}

		if sess.IdleExpired(now) {
			b.log.Debug("keep-alive expired", "client_id", sess.ClientID)
			c.close(ErrKeepAliveExpired)
			continue
		}

		for _, msg := range sess.PendingMessages() {
			if now.Sub(msg.LastAttemptAt) < b.cfg.RetryInterval {
				continue
			}
			// AttemptCount includes the original transmission
			if msg.AttemptCount > b.cfg.MaxRetries {
				b.log.Debug("retries exhausted", "client_id", sess.ClientID, "packet_id", msg.PacketID)
				c.close(ErrRetryExhausted)
				break
			}
			c.resend(msg)
		}
	}
}

func (b *Broker) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", b.stats.Handler())

	b.metricsSrv = &http.Server{Addr: b.cfg.MetricsAddr, Handler: mux}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.log.Warn("metrics listener failed", "error", err)
		}
	}()
}

// Publish injects a message through the same routing path as a client
// PUBLISH. This is how the collection scheduler reaches subscribers in
// builtin mode.
func (b *Broker) Publish(topicName string, payload []byte, qos encoding.QoS, retain bool) error {
	if b.stopped.Load() {
		return ErrBrokerClosed
	}
	if err := topic.ValidateTopic(topicName); err != nil {
		return err
	}
	if qos > encoding.QoS1 {
		qos = encoding.QoS1
	}

	b.ingest(message.New(topicName, payload, qos, retain))
	return nil
}

// ingest updates the retained store when asked to, then fans out
func (b *Broker) ingest(msg *message.Message) {
	if msg.Retain {
		_ = b.retained.Set(msg.Topic, msg.Clone())
		b.stats.RetainedMessages.Set(float64(b.retained.Count()))
	}

	b.route(msg)
}

// route fans a message out to every matching subscriber. Live deliveries
// carry retain=0 regardless of the inbound flag.
func (b *Broker) route(msg *message.Message) {
	for _, sub := range b.router.Match(msg.Topic) {
		c := b.clientByID(sub.ClientID)
		if c == nil {
			continue
		}
		c.deliver(msg, sub.QoS, false)
		b.stats.MessagesRouted.Inc()
	}
}

// Stop closes the listener, lets sessions drain in-flight messages within
// the stop timeout, then force-closes what is left.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() {
		b.stopped.Store(true)
		close(b.done)

		if b.listener != nil {
			_ = b.listener.Close()
		}
		if b.metricsSrv != nil {
			_ = b.metricsSrv.Close()
		}

		for _, c := range b.clientList() {
			if c.sess != nil {
				c.sess.SetState(session.StateDisconnecting)
			}
		}

		deadline := time.Now().Add(b.cfg.StopTimeout)
		for time.Now().Before(deadline) {
			if b.pendingTotal() == 0 {
				break
			}
			time.Sleep(50 * time.Millisecond)
		}

		for _, c := range b.clientList() {
			c.close(nil)
		}

		// Connections that never completed the handshake are not in the
		// client table yet; close them directly
		for _, conn := range b.connList() {
			_ = conn.Close()
		}

		b.clientWG.Wait()
		b.wg.Wait()
		b.log.Info("broker stopped")
	})
}

func (b *Broker) pendingTotal() int {
	total := 0
	for _, c := range b.clientList() {
		if c.sess != nil {
			total += c.sess.PendingCount()
		}
	}
	return total
}

// attach installs the client in the connection table once its handshake
// succeeded
func (b *Broker) attach(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[c.sess.ClientID] = c
}

// detach undoes attach and publishes the will on abnormal termination
func (b *Broker) detach(c *client, reason error) {
	b.stats.ActiveConnections.Dec()

	if c.sess == nil {
		return
	}

	b.sessions.Remove(c.sess)

	b.mu.Lock()
	if current, ok := b.clients[c.sess.ClientID]; ok && current == c {
		delete(b.clients, c.sess.ClientID)
		b.mu.Unlock()
		b.router.RemoveClient(c.sess.ClientID)
	} else {
		b.mu.Unlock()
	}

	if reason != nil {
		if will := c.sess.TakeWill(); will != nil {
			b.ingest(will)
		}
	}

	b.log.Debug("client disconnected", "client_id", c.sess.ClientID, "reason", reason)
}

// closeClientFor force-closes the connection currently serving a session
func (b *Broker) closeClientFor(sess *session.Session, reason error) {
	b.mu.RLock()
	c := b.clients[sess.ClientID]
	b.mu.RUnlock()

	if c != nil && c.sess == sess {
		c.close(reason)
	}
}

func (b *Broker) trackConn(conn net.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conns[conn] = struct{}{}
}

func (b *Broker) untrackConn(conn net.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conns, conn)
}

func (b *Broker) connList() []net.Conn {
	b.mu.RLock()
	defer b.mu.RUnlock()

	list := make([]net.Conn, 0, len(b.conns))
	for conn := range b.conns {
		list = append(list, conn)
	}
	return list
}

func (b *Broker) clientByID(clientID string) *client {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.clients[clientID]
}

func (b *Broker) clientList() []*client {
	b.mu.RLock()
	defer b.mu.RUnlock()

	list := make([]*client, 0, len(b.clients))
	for _, c := range b.clients {
		list = append(list, c)
	}
	return list
}

// ConnectionCount returns the number of clients past the handshake
func (b *Broker) ConnectionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// RetainedCount returns the number of retained messages held
func (b *Broker) RetainedCount() int {
	return b.retained.Count()
}
