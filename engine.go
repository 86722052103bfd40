package mqttws

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// State is the connection state of a client.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

type result struct {
	packet Packet
	err    error
}

// engine owns every piece of protocol state. All of it is touched only by
// the loop goroutine; everything else talks to it through post.
type engine struct {
	url    string
	opts   *clientOptions
	log    Logger
	notify *notifier
	stats  *statistics
	mx     *clientMetrics

	dialer    Dialer
	dialerErr error

	cmds chan func()
	done chan struct{}

	// published for IsConnected and State.
	publicState atomic.Int32

	state      State
	epoch      uint64
	conn       Conn
	failure    error
	connectPkt *ConnectPacket
	connack    *ConnackPacket
	waiter     chan result

	dialCancel     context.CancelFunc
	connectTimer   *time.Timer
	reconnectTimer *time.Timer
	ping           pinger
	backoff        *backoff
	framer         framer

	// outbound limit announced by the broker, 0 for none.
	maxPacketSize uint32

	ids      *PacketIDAllocator
	quota    *FlowController
	aliases  *TopicAliasManager
	matcher  *TopicMatcher
	requests map[uint16]*request
	seq      uint64
	pending  []*request
	queued   []*PublishPacket
	incoming map[uint16]*Message
	subs     []*SubscribePacket
	// ids of timed out requests, held until a late ack or a new session.
	retired map[uint16]struct{}
}

func newEngine(url string, opts *clientOptions) *engine {
	e := &engine{
		url:      url,
		opts:     opts,
		log:      opts.logger.WithFields(LogFields{LogFieldURL: url}),
		notify:   newNotifier(opts.onEvent),
		stats:    &statistics{},
		mx:       newClientMetrics(opts.metrics),
		cmds:     make(chan func()),
		done:     make(chan struct{}),
		backoff:  newBackoff(opts.initialReconnectDelay, opts.maxReconnectDelay, opts.reconnectJitter),
		ids:      NewPacketIDAllocator(),
		quota:    NewFlowController(0),
		aliases:  NewTopicAliasManager(0),
		matcher:  NewTopicMatcher(),
		requests: make(map[uint16]*request),
		incoming: make(map[uint16]*Message),
		retired:  make(map[uint16]struct{}),
	}
	e.dialer, e.dialerErr = opts.buildDialer(url)
	go e.loop()
	return e
}

func (e *engine) loop() {
	defer close(e.done)

	for fn := range e.cmds {
		fn()

		if e.failure != nil {
			err := e.failure
			e.failure = nil
			e.connectionFailed(err)
		}
		if e.state == StateDisconnected {
			return
		}
	}
}

// post hands fn to the loop. It reports false once the loop has stopped.
func (e *engine) post(fn func()) bool {
	select {
	case e.cmds <- fn:
		return true
	case <-e.done:
		return false
	}
}

// await waits for a request result, the caller's context or the end of
// the loop, whichever comes first.
func (e *engine) await(ctx context.Context, res <-chan result) result {
	select {
	case r := <-res:
		return r
	case <-ctx.Done():
		return result{err: ctx.Err()}
	case <-e.done:
		select {
		case r := <-res:
			return r
		default:
			return result{err: ErrClientClosed}
		}
	}
}

func (e *engine) setState(s State) {
	if e.state != s {
		e.log.Debug("state changed", LogFields{LogFieldState: s.String()})
	}
	e.state = s
	e.publicState.Store(int32(s))
}

// fail records a connection failure. It is handled once the current
// command returns, so handlers never tear the connection down mid-way.
func (e *engine) fail(err error) {
	if e.failure == nil {
		e.failure = err
	}
}

// trace logs msg and mirrors it as a LogEvent.
func (e *engine) trace(level LogLevel, msg string, fields LogFields) {
	switch level {
	case LogLevelDebug:
		e.log.Debug(msg, fields)
	case LogLevelInfo:
		e.log.Info(msg, fields)
	case LogLevelWarn:
		e.log.Warn(msg, fields)
	default:
		e.log.Error(msg, fields)
	}
	e.notify.emit(LogEvent{Time: time.Now(), Level: level, Message: msg, Fields: fields})
}

// start begins the first connection attempt. The CONNACK or failure is
// delivered on waiter.
func (e *engine) start(pkt *ConnectPacket, waiter chan result) {
	switch e.state {
	case StateIdle:
	case StateDisconnected:
		waiter <- result{err: ErrClientClosed}
		return
	default:
		waiter <- result{err: ErrAlreadyStarted}
		return
	}

	if e.dialerErr != nil {
		waiter <- result{err: e.dialerErr}
		return
	}

	e.connectPkt = pkt
	e.waiter = waiter
	e.framer.maxSize = e.opts.maxPacketSize
	if pkt.MaximumPacketSize > 0 {
		e.framer.maxSize = pkt.MaximumPacketSize
	}
	e.aliases.NewConnection(pkt.TopicAliasMaximum, 0)

	e.setState(StateConnecting)
	e.dial()
}

// abort cancels the first connection attempt on behalf of its caller.
func (e *engine) abort(waiter chan result, err error) {
	if e.waiter != waiter || e.state != StateConnecting {
		return
	}
	e.connectFailed(err)
}

func (e *engine) dial() {
	e.epoch++
	epoch := e.epoch
	e.mx.connectAttempt()
	e.trace(LogLevelDebug, "dialing", nil)

	ctx, cancel := context.WithTimeout(context.Background(), e.opts.timeout)
	e.dialCancel = cancel
	e.connectTimer = time.AfterFunc(e.opts.timeout, func() {
		e.post(func() {
			if e.epoch == epoch && e.state == StateConnecting {
				e.connectFailed(ErrConnectTimeout)
			}
		})
	})

	go func() {
		conn, err := e.dialer.Dial(ctx, e.url)
		posted := e.post(func() {
			if e.epoch != epoch || e.state != StateConnecting {
				if conn != nil {
					conn.Close()
				}
				return
			}
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					err = ErrConnectTimeout
				}
				e.connectFailed(err)
				return
			}
			e.connected(conn, epoch)
		})
		if !posted && conn != nil {
			conn.Close()
		}
	}()
}

// connected sends CONNECT on a freshly dialed transport.
func (e *engine) connected(conn Conn, epoch uint64) {
	e.conn = conn
	go e.readLoop(conn, epoch)

	pkt := *e.connectPkt
	if err := e.writePacket(&pkt); err != nil && e.failure == nil {
		e.connectFailed(err)
	}
}

func (e *engine) readLoop(conn Conn, epoch uint64) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			e.post(func() {
				if e.epoch == epoch {
					e.fail(connectionLost(err))
				}
			})
			return
		}

		posted := e.post(func() {
			if e.epoch == epoch {
				e.receive(data)
			}
		})
		if !posted {
			return
		}
	}
}

// connectFailed ends a connection attempt that never reached CONNACK.
func (e *engine) connectFailed(err error) {
	e.teardown()

	if e.waiter != nil {
		e.waiter <- result{err: err}
		e.waiter = nil
		e.setState(StateIdle)
		e.trace(LogLevelWarn, "connect failed", LogFields{LogFieldError: err.Error()})
		e.rejectAll(fmt.Errorf("%w: %w", ErrNotConnected, err))
		return
	}

	e.trace(LogLevelWarn, "reconnect failed", LogFields{LogFieldError: err.Error()})
	e.scheduleReconnect()
}

// connectionFailed handles a failure recorded with fail.
func (e *engine) connectionFailed(err error) {
	switch e.state {
	case StateConnecting:
		e.connectFailed(err)
		return
	case StateConnected:
	default:
		return
	}

	e.trace(LogLevelWarn, "connection lost", LogFields{LogFieldError: err.Error()})
	e.teardown()
	e.mx.connected(false)
	e.notify.emit(DisconnectedEvent{Err: err})

	if e.opts.autoReconnect {
		e.scheduleReconnect()
		return
	}

	e.setState(StateIdle)
	e.rejectAll(connectionLost(err))
}

func (e *engine) scheduleReconnect() {
	e.setState(StateReconnecting)

	delay := e.backoff.Next()
	epoch := e.epoch
	e.trace(LogLevelInfo, "reconnect scheduled", LogFields{LogFieldDelay: delay.String()})

	e.reconnectTimer = time.AfterFunc(delay, func() {
		e.post(func() {
			if e.epoch != epoch || e.state != StateReconnecting {
				return
			}
			e.notify.emit(ReconnectingEvent{Message: reconnectingMessage})
			e.setState(StateConnecting)
			e.dial()
		})
	})
}

// teardown drops the transport and everything tied to it. Requests stay
// outstanding for the next connection.
func (e *engine) teardown() {
	e.epoch++

	if e.connectTimer != nil {
		e.connectTimer.Stop()
		e.connectTimer = nil
	}
	if e.dialCancel != nil {
		e.dialCancel()
		e.dialCancel = nil
	}
	e.ping.stop()
	e.framer.reset()

	if e.conn != nil {
		e.conn.Close()
		e.conn = nil
	}
	e.connack = nil
	e.failure = nil
}

func (e *engine) handleConnack(p *ConnackPacket) {
	if e.state != StateConnecting {
		e.protocolViolation(ReasonProtocolError, errors.New("unexpected CONNACK"))
		return
	}
	if e.connectTimer != nil {
		e.connectTimer.Stop()
		e.connectTimer = nil
	}

	if p.ReasonCode.IsError() {
		e.connectFailed(&ConnectError{ReasonCode: p.ReasonCode, Connack: p})
		return
	}

	e.connack = p
	e.setState(StateConnected)
	e.mx.connected(true)

	if id := p.AssignedClientID(); id != "" {
		e.connectPkt.ClientID = id
	}

	keepAlive := e.connectPkt.KeepAlive
	if v, ok := p.ServerKeepAlive(); ok {
		keepAlive = v
	}
	epoch := e.epoch
	e.ping.start(time.Duration(keepAlive)*time.Second, func() {
		e.post(func() {
			if e.epoch == epoch {
				e.keepAliveElapsed()
			}
		})
	})

	e.quota.Reset(p.ReceiveMaximum())
	e.aliases.NewConnection(e.connectPkt.TopicAliasMaximum, p.TopicAliasMaximum())
	e.maxPacketSize = p.MaximumPacketSize()
	e.backoff.Reset()

	e.trace(LogLevelInfo, "connected", LogFields{
		LogFieldClientID: e.connectPkt.ClientID,
		"session_present": p.SessionPresent,
	})

	if e.waiter != nil {
		e.waiter <- result{packet: p}
		e.waiter = nil
	} else {
		e.mx.reconnected()
		e.notify.emit(ReconnectedEvent{Connack: p})
	}

	e.resume(p.SessionPresent)
}

func (e *engine) keepAliveElapsed() {
	if err := e.ping.expired(); err != nil {
		e.fail(err)
		return
	}
	e.writePacket(&PingreqPacket{})
}

// receive reassembles transport data into packets and handles them.
func (e *engine) receive(data []byte) {
	e.stats.bytesReceived.Add(uint64(len(data)))

	frames, err := e.framer.push(data)
	for _, fr := range frames {
		if e.failure != nil {
			return
		}

		pkt, derr := decodeBody(fr.header, fr.body)
		if derr != nil {
			e.malformed(derr)
			return
		}
		e.mx.packetReceived(pkt.Type(), fr.size)
		e.handle(pkt)
	}
	if err != nil && e.failure == nil {
		e.malformed(err)
	}
}

// malformed reports an undecodable packet to the broker and drops the
// connection.
func (e *engine) malformed(err error) {
	reason := ReasonMalformedPacket
	switch {
	case errors.Is(err, ErrPacketTooLarge):
		reason = ReasonPacketTooLarge
	case errors.Is(err, ErrPropertyNotAllowed), errors.Is(err, ErrUnknownPacketType):
		reason = ReasonProtocolError
	}
	e.trace(LogLevelError, "malformed packet", LogFields{LogFieldError: err.Error()})
	e.sendDisconnect(reason)
	e.fail(err)
}

// protocolViolation disconnects with reason after a broker error.
func (e *engine) protocolViolation(reason ReasonCode, err error) {
	e.trace(LogLevelError, "protocol violation", LogFields{
		LogFieldError:      err.Error(),
		LogFieldReasonCode: reason.String(),
	})
	e.sendDisconnect(reason)
	e.fail(fmt.Errorf("%w: %w", ErrProtocolError, err))
}

func (e *engine) sendDisconnect(reason ReasonCode) {
	if e.conn == nil {
		return
	}
	data, err := EncodePacket(&DisconnectPacket{ReasonCode: reason})
	if err == nil {
		_ = e.conn.WriteMessage(data)
	}
}

func (e *engine) handle(pkt Packet) {
	e.trace(LogLevelDebug, "received", LogFields{LogFieldPacketType: pkt.Type().String()})

	if e.state == StateConnecting {
		if p, ok := pkt.(*ConnackPacket); ok {
			e.handleConnack(p)
			return
		}
		e.protocolViolation(ReasonProtocolError, fmt.Errorf("%s before CONNACK", pkt.Type()))
		return
	}

	switch p := pkt.(type) {
	case *ConnackPacket:
		e.handleConnack(p)
	case *PublishPacket:
		e.handlePublish(p)
	case *PubackPacket:
		e.handlePuback(p)
	case *PubrecPacket:
		e.handlePubrec(p)
	case *PubrelPacket:
		e.handlePubrel(p)
	case *PubcompPacket:
		e.handlePubcomp(p)
	case *SubackPacket:
		e.handleSuback(p)
	case *UnsubackPacket:
		e.handleUnsuback(p)
	case *PingrespPacket:
		e.ping.pong()
	case *DisconnectPacket:
		e.handleDisconnect(p)
	case *AuthPacket, *ConnectPacket, *SubscribePacket, *UnsubscribePacket, *PingreqPacket:
		e.protocolViolation(ReasonProtocolError, fmt.Errorf("unexpected %s", pkt.Type()))
	}
}

func (e *engine) handleDisconnect(p *DisconnectPacket) {
	props := p.Props.clone()
	err := &ServerDisconnectError{ReasonCode: p.ReasonCode, Properties: &props}
	e.trace(LogLevelWarn, "server disconnect", LogFields{
		LogFieldReasonCode: p.ReasonCode.String(),
		"description":      err.Description(),
	})
	e.fail(err)
}

// writePacket encodes pkt and writes it. Encoding errors are returned;
// transport errors are also recorded as a connection failure.
func (e *engine) writePacket(pkt Packet) error {
	if e.conn == nil {
		return ErrNotConnected
	}

	data, err := EncodePacket(pkt)
	if err != nil {
		return err
	}
	if e.maxPacketSize > 0 && uint32(len(data)) > e.maxPacketSize {
		return fmt.Errorf("%w: %d bytes, broker limit %d", ErrPacketTooLarge, len(data), e.maxPacketSize)
	}

	if err := e.conn.WriteMessage(data); err != nil {
		err = connectionLost(err)
		e.fail(err)
		return err
	}

	e.stats.bytesSent.Add(uint64(len(data)))
	e.mx.packetSent(pkt.Type(), len(data))
	e.trace(LogLevelDebug, "sent", LogFields{
		LogFieldPacketType: pkt.Type().String(),
		LogFieldBytes:      len(data),
	})
	return nil
}

// disconnect ends the client. The loop stops after it returns.
func (e *engine) disconnect(pkt *DisconnectPacket) {
	wasIdle := e.state == StateIdle

	if e.state == StateConnected {
		if err := e.writePacket(pkt); err != nil {
			e.trace(LogLevelWarn, "disconnect not sent", LogFields{LogFieldError: err.Error()})
		}
	}

	e.teardown()
	if e.reconnectTimer != nil {
		e.reconnectTimer.Stop()
		e.reconnectTimer = nil
	}
	if e.waiter != nil {
		e.waiter <- result{err: ErrClientClosed}
		e.waiter = nil
	}

	e.setState(StateDisconnected)
	e.rejectAll(ErrClientClosed)
	e.mx.connected(false)

	if !wasIdle {
		e.trace(LogLevelInfo, "disconnected", LogFields{LogFieldReasonCode: pkt.ReasonCode.String()})
		e.notify.emit(DisconnectedEvent{})
	}
	e.notify.close()
}
