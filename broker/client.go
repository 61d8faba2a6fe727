package broker

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/naspanel/nasmon/encoding"
	"github.com/naspanel/nasmon/session"
	"github.com/naspanel/nasmon/topic"
	"github.com/naspanel/nasmon/types/message"
)

// client couples one TCP connection with its session. A reader goroutine
// parses inbound packets; a writer goroutine drains the bounded outbound
// queue. Per-client failures never propagate to other clients.
type client struct {
	b    *Broker
	conn net.Conn
	log  *slog.Logger

	sess *session.Session

	outbound  chan encoding.Packet
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(b *Broker, conn net.Conn) *client {
	return &client{
		b:        b,
		conn:     conn,
		log:      b.cfg.Logger.With("remote", conn.RemoteAddr().String()),
		outbound: make(chan encoding.Packet, b.cfg.QueueSize),
		done:     make(chan struct{}),
	}
}

// run drives the connection: handshake, then reader loop. It returns when
// the connection is closed.
func (c *client) run() {
	reader := bufio.NewReader(countingReader{c.conn, c.b.stats})

	if !c.handshake(reader) {
		return
	}

	go c.writeLoop()
	c.readLoop(reader)
}

// handshake waits for CONNECT within the grace period and answers with
// CONNACK. Returns false when the connection must not proceed.
func (c *client) handshake(reader *bufio.Reader) bool {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.b.cfg.ConnectTimeout))

	pkt, err := encoding.ReadPacket(reader)
	if err != nil {
		if errors.Is(err, encoding.ErrInvalidProtocolName) {
			c.refuse(encoding.ConnectRefusedUnacceptableProtocol)
			return false
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			c.close(ErrConnectTimeout)
			return false
		}
		c.close(err)
		return false
	}

	cp, ok := pkt.(*encoding.ConnectPacket)
	if !ok {
		c.close(ErrProtocolViolation)
		return false
	}

	if cp.ProtocolLevel != encoding.ProtocolLevel {
		c.refuse(encoding.ConnectRefusedUnacceptableProtocol)
		return false
	}

	clientID := cp.ClientID
	if clientID == "" {
		if !cp.CleanSession {
			c.refuse(encoding.ConnectRefusedIdentifierRejected)
			return false
		}
		clientID = c.b.sessions.GenerateClientID()
	}

	if c.b.auth.Required() && !cp.UsernameFlag {
		c.refuse(encoding.ConnectRefusedNotAuthorized)
		return false
	}
	if !c.b.auth.Authenticate(cp.Username, cp.Password) {
		c.refuse(encoding.ConnectRefusedBadUsernamePassword)
		return false
	}

	sess := session.New(clientID, cp.CleanSession, cp.KeepAlive)
	if cp.WillFlag {
		willQoS := cp.WillQoS
		if willQoS > c.b.cfg.MaxQoS {
			willQoS = c.b.cfg.MaxQoS
		}
		sess.Will = message.New(cp.WillTopic, cp.WillPayload, willQoS, cp.WillRetain)
	}
	c.sess = sess

	// A connected session already holding this client ID is displaced
	// before the new one is acknowledged
	if prev := c.b.sessions.Register(sess); prev != nil {
		c.b.closeClientFor(prev, ErrTakenOver)
	}
	c.b.attach(c)

	// Sessions are effectively clean, so session present is always 0
	connack := &encoding.ConnackPacket{ReturnCode: encoding.ConnectAccepted}
	if err := connack.Encode(c.conn); err != nil {
		c.close(err)
		return false
	}

	sess.SetState(session.StateConnected)
	_ = c.conn.SetReadDeadline(time.Time{})

	c.log.Debug("client connected", "client_id", clientID, "keep_alive", cp.KeepAlive)
	return true
}

// refuse sends a CONNACK with a non-zero return code and closes
func (c *client) refuse(code byte) {
	connack := &encoding.ConnackPacket{ReturnCode: code}
	_ = connack.Encode(c.conn)
	c.close(ErrProtocolViolation)
}

func (c *client) readLoop(reader *bufio.Reader) {
	for {
		pkt, err := encoding.ReadPacket(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				c.log.Debug("read failed", "client_id", c.sess.ClientID, "error", err)
			}
			c.close(err)
			return
		}

		c.sess.Touch()
		c.b.stats.PacketsReceived.Inc()

		switch p := pkt.(type) {
		case *encoding.PublishPacket:
			if err := c.handlePublish(p); err != nil {
				c.close(err)
				return
			}
		case *encoding.PubackPacket:
			c.sess.Ack(p.PacketID)
		case *encoding.SubscribePacket:
			c.handleSubscribe(p)
		case *encoding.UnsubscribePacket:
			c.handleUnsubscribe(p)
		case *encoding.PingreqPacket:
			c.enqueue(&encoding.PingrespPacket{})
		case *encoding.DisconnectPacket:
			// Normal disconnect discards the will
			c.sess.ClearWill()
			c.close(nil)
			return
		default:
			// CONNECT twice, or a server-to-client packet type
			c.close(ErrProtocolViolation)
			return
		}
	}
}

// handlePublish routes an inbound message, then acknowledges it. Routing
// first guarantees a PUBACK is never sent for an unrouted message.
func (c *client) handlePublish(p *encoding.PublishPacket) error {
	if err := topic.ValidateTopic(p.TopicName); err != nil {
		return err
	}

	// QoS 2 is degraded to QoS 1 semantics: route once, then PUBACK
	qos := p.QoS
	if qos > encoding.QoS1 {
		qos = encoding.QoS1
	}

	c.b.ingest(message.New(p.TopicName, p.Payload, qos, p.Retain))

	if p.QoS > encoding.QoS0 {
		c.enqueue(&encoding.PubackPacket{PacketID: p.PacketID})
	}
	return nil
}

func (c *client) handleSubscribe(p *encoding.SubscribePacket) {
	type grant struct {
		filter string
		qos    encoding.QoS
	}

	codes := make([]byte, 0, len(p.Subscriptions))
	grants := make([]grant, 0, len(p.Subscriptions))

	for _, sub := range p.Subscriptions {
		if err := topic.ValidateFilter(sub.TopicFilter); err != nil {
			codes = append(codes, 0x80)
			continue
		}

		granted := sub.QoS
		if granted > c.b.cfg.MaxQoS {
			granted = c.b.cfg.MaxQoS
		}

		if err := c.b.router.Subscribe(c.sess.ClientID, sub.TopicFilter, granted); err != nil {
			codes = append(codes, 0x80)
			continue
		}
		c.sess.AddSubscription(sub.TopicFilter, granted)

		codes = append(codes, byte(granted))
		grants = append(grants, grant{filter: sub.TopicFilter, qos: granted})
	}

	c.enqueue(&encoding.SubackPacket{PacketID: p.PacketID, ReturnCodes: codes})

	// Retained messages follow the SUBACK, flagged as retained deliveries
	for _, g := range grants {
		for _, retained := range c.b.retained.Match(g.filter) {
			c.deliver(retained, g.qos, true)
		}
	}
}

func (c *client) handleUnsubscribe(p *encoding.UnsubscribePacket) {
	for _, filter := range p.TopicFilters {
		c.b.router.Unsubscribe(c.sess.ClientID, filter)
		c.sess.RemoveSubscription(filter)
	}

	c.enqueue(&encoding.UnsubackPacket{PacketID: p.PacketID})
}

// deliver fans one message out to this client. The effective QoS is the
// lower of the publish QoS and the granted QoS.
func (c *client) deliver(msg *message.Message, granted encoding.QoS, retained bool) {
	effective := msg.QoS
	if granted < effective {
		effective = granted
	}

	if effective == encoding.QoS0 {
		c.enqueueOrDrop(&encoding.PublishPacket{
			QoS:       encoding.QoS0,
			Retain:    retained,
			TopicName: msg.Topic,
			Payload:   msg.Payload,
		})
		return
	}

	out := msg.Clone()
	out.QoS = effective
	out.Retain = retained
	out.PacketID = c.sess.NextPacketID()
	out.MarkAttempt()
	c.sess.AddPending(out)

	c.enqueue(&encoding.PublishPacket{
		QoS:       effective,
		Retain:    retained,
		TopicName: out.Topic,
		PacketID:  out.PacketID,
		Payload:   out.Payload,
	})
}

// resend retransmits an unacknowledged QoS 1 message with DUP set
func (c *client) resend(msg *message.Message) {
	msg.MarkAttempt()

	c.enqueue(&encoding.PublishPacket{
		DUP:       true,
		QoS:       msg.QoS,
		Retain:    msg.Retain,
		TopicName: msg.Topic,
		PacketID:  msg.PacketID,
		Payload:   msg.Payload,
	})
}

// enqueueOrDrop queues a packet without blocking. A full queue means the
// consumer cannot keep up; it is disconnected rather than stalling the
// publisher.
func (c *client) enqueueOrDrop(pkt encoding.Packet) {
	select {
	case c.outbound <- pkt:
	case <-c.done:
	default:
		c.b.stats.SlowConsumers.Inc()
		c.close(ErrSlowConsumer)
	}
}

// enqueue queues a packet, waiting up to the queue timeout before
// declaring the consumer slow
func (c *client) enqueue(pkt encoding.Packet) {
	timer := time.NewTimer(c.b.cfg.QueueTimeout)
	defer timer.Stop()

	select {
	case c.outbound <- pkt:
	case <-c.done:
	case <-timer.C:
		c.b.stats.SlowConsumers.Inc()
		c.close(ErrSlowConsumer)
	}
}

func (c *client) writeLoop() {
	writer := bufio.NewWriter(countingWriter{c.conn, c.b.stats})

	for {
		select {
		case pkt := <-c.outbound:
			if err := pkt.Encode(writer); err != nil {
				c.close(err)
				return
			}
			if err := writer.Flush(); err != nil {
				c.close(err)
				return
			}
			c.b.stats.PacketsSent.Inc()
		case <-c.done:
			return
		}
	}
}

// close tears the connection down exactly once. A non-nil reason counts as
// an abnormal termination and triggers the will message.
func (c *client) close(reason error) {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
		close(c.done)

		if c.sess != nil {
			c.sess.SetState(session.StateClosed)
		}
		c.b.detach(c, reason)
	})
}

// countingReader feeds the inbound byte counter
type countingReader struct {
	r io.Reader
	s *stats
}

func (cr countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.s.BytesReceived.Add(float64(n))
	}
	return n, err
}

// countingWriter feeds the outbound byte counter
type countingWriter struct {
	w io.Writer
	s *stats
}

func (cw countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	if n > 0 {
		cw.s.BytesSent.Add(float64(n))
	}
	return n, err
}
