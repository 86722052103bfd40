package mqttws

import "time"

// request is an outstanding operation keyed by packet id.
type request struct {
	id   uint16
	seq  uint64
	kind PacketType

	// original is the packet as first submitted, used for replay when the
	// broker lost the session. stage is what goes on the wire next: the
	// PUBLISH, its PUBREL, or the SUBSCRIBE/UNSUBSCRIBE itself.
	original Packet
	stage    Packet

	sent       bool
	holdsQuota bool
	handler    MessageHandler
	// previous holds, per filter this request installed a handler for, the
	// handler it replaced (nil when there was none).
	previous map[string]MessageHandler
	// resubscribe marks SUBSCRIBEs replayed from the subscription cache.
	resubscribe bool

	started time.Time
	timer   *time.Timer
	result  chan result
	done    bool
}

func (r *request) resolve(pkt Packet, err error) {
	if r.done {
		return
	}
	r.done = true
	if r.timer != nil {
		r.timer.Stop()
	}
	r.result <- result{packet: pkt, err: err}
}

func (e *engine) register(kind PacketType, pkt PacketWithID, res chan result) (*request, error) {
	id, err := e.ids.NextID()
	if err != nil {
		return nil, err
	}
	pkt.SetPacketID(id)

	e.seq++
	r := &request{
		id:       id,
		seq:      e.seq,
		kind:     kind,
		original: pkt,
		stage:    pkt,
		started:  time.Now(),
		result:   res,
	}
	if kind == PacketPUBLISH {
		r.stage = pkt.(*PublishPacket).clone()
	}
	e.requests[id] = r

	if d := e.opts.requestTimeout; d > 0 {
		r.timer = time.AfterFunc(d, func() {
			e.post(func() { e.expire(r) })
		})
	}
	return r, nil
}

func (e *engine) expire(r *request) {
	if e.requests[r.id] != r {
		return
	}
	e.trace(LogLevelWarn, "request timed out", LogFields{
		LogFieldPacketID:   r.id,
		LogFieldPacketType: r.kind.String(),
	})
	// the broker may still answer on this id; keep it out of circulation
	// until it does or the session is gone.
	e.retired[r.id] = struct{}{}
	e.finish(r, nil, ErrRequestTimeout)
}

// releaseRetired frees id if it belongs to a timed out request. It reports
// whether it did.
func (e *engine) releaseRetired(id uint16) bool {
	if _, ok := e.retired[id]; !ok {
		return false
	}
	delete(e.retired, id)
	e.ids.FreeID(id)
	e.trace(LogLevelDebug, "late acknowledgement", LogFields{LogFieldPacketID: id})
	return true
}

// releaseAllRetired frees every held id once the broker has no session.
func (e *engine) releaseAllRetired() {
	for id := range e.retired {
		e.ids.FreeID(id)
	}
	clear(e.retired)
}

// finish resolves r and frees everything it holds.
func (e *engine) finish(r *request, pkt Packet, err error) {
	if e.requests[r.id] == r {
		delete(e.requests, r.id)
		if _, held := e.retired[r.id]; !held {
			e.ids.FreeID(r.id)
		}
	}
	if r.holdsQuota {
		r.holdsQuota = false
		e.quota.Release()
	}
	if r.kind == PacketSUBSCRIBE && pkt == nil && err != nil {
		for filter := range r.previous {
			e.restoreHandler(r, filter)
		}
	}

	if r.resubscribe {
		suback, _ := pkt.(*SubackPacket)
		e.notify.emit(ResubscriptionEvent{
			Subscribe: r.original.(*SubscribePacket).Clone(),
			Suback:    suback,
			Err:       err,
		})
	}
	r.resolve(pkt, err)

	e.mx.inflight(len(e.requests))
	e.drainPending()
}

// acceptsRequests returns the error for submissions in states that take
// none.
func (e *engine) acceptsRequests() error {
	switch e.state {
	case StateIdle:
		return ErrNotConnected
	case StateDisconnected:
		return ErrClientClosed
	default:
		return nil
	}
}

func (e *engine) publish(msg *Message, res chan result) {
	if err := e.acceptsRequests(); err != nil {
		res <- result{err: err}
		return
	}

	pkt := &PublishPacket{}
	pkt.FromMessage(msg)
	if err := e.trackAlias(pkt); err != nil {
		res <- result{err: err}
		return
	}

	if pkt.QoS == 0 {
		e.publishQoS0(pkt, res)
		return
	}

	r, err := e.register(PacketPUBLISH, pkt, res)
	if err != nil {
		res <- result{err: err}
		return
	}
	e.mx.inflight(len(e.requests))
	e.sendPublish(r)
}

func (e *engine) publishQoS0(pkt *PublishPacket, res chan result) {
	if e.state != StateConnected {
		e.queued = append(e.queued, pkt)
		res <- result{}
		return
	}

	err := e.writePacket(pkt)
	if err == nil {
		e.stats.publishSent.Add(1)
		e.mx.published(0, 0)
	}
	if e.failure != nil {
		// the write failed on the transport; keep the message for the
		// next connection like any other publish made while offline.
		e.queued = append(e.queued, pkt)
		err = nil
	}
	res <- result{err: err}
}

// trackAlias keeps the outbound alias table in step with pkt.
func (e *engine) trackAlias(pkt *PublishPacket) error {
	alias := pkt.TopicAlias()
	if alias == 0 {
		if pkt.Topic == "" {
			return ErrTopicNameEmpty
		}
		e.aliases.InvalidateTopic(pkt.Topic)
		return nil
	}

	if err := e.aliases.CheckOutbound(alias, e.connack != nil); err != nil {
		return err
	}
	if pkt.Topic != "" {
		e.aliases.RecordOutbound(alias, pkt.Topic)
	}
	return nil
}

// sendPublish puts r on the wire if quota allows, otherwise queues it. Queue
// order is kept: nothing overtakes a publish already waiting.
func (e *engine) sendPublish(r *request) {
	if e.state != StateConnected {
		return
	}
	if len(e.pending) > 0 || !e.quota.TryAcquire() {
		e.pending = append(e.pending, r)
		e.mx.pending(len(e.pending))
		e.trace(LogLevelDebug, "publish queued for quota", LogFields{
			LogFieldPacketID: r.id,
			LogFieldQoS:      r.original.(*PublishPacket).QoS,
		})
		return
	}
	r.holdsQuota = true
	e.transmit(r)
}

func (e *engine) drainPending() {
	for len(e.pending) > 0 && e.state == StateConnected && e.failure == nil {
		r := e.pending[0]
		if e.requests[r.id] != r {
			e.pending = e.pending[1:]
			continue
		}
		if !e.quota.TryAcquire() {
			break
		}
		e.pending = e.pending[1:]
		r.holdsQuota = true
		e.transmit(r)
	}
	e.mx.pending(len(e.pending))
}

// transmit writes the current stage of r. A packet that cannot be encoded
// fails the request; a transport error leaves it for the next connection.
func (e *engine) transmit(r *request) {
	err := e.writePacket(r.stage)
	switch {
	case err == nil:
		r.sent = true
	case e.failure != nil:
	default:
		e.finish(r, nil, err)
	}
}

func (e *engine) subscribe(pkt *SubscribePacket, handler MessageHandler, res chan result) {
	if err := e.acceptsRequests(); err != nil {
		res <- result{err: err}
		return
	}

	r, err := e.register(PacketSUBSCRIBE, pkt, res)
	if err != nil {
		res <- result{err: err}
		return
	}
	r.handler = handler

	if handler != nil {
		r.previous = make(map[string]MessageHandler, len(pkt.Subscriptions))
		for _, s := range pkt.Subscriptions {
			prev, _ := e.matcher.Handler(s.TopicFilter)
			if err := e.matcher.Subscribe(s.TopicFilter, handler); err != nil {
				e.finish(r, nil, err)
				return
			}
			r.previous[s.TopicFilter] = prev
		}
	}

	if e.state == StateConnected {
		e.transmit(r)
	}
}

func (e *engine) unsubscribe(pkt *UnsubscribePacket, res chan result) {
	if err := e.acceptsRequests(); err != nil {
		res <- result{err: err}
		return
	}

	r, err := e.register(PacketUNSUBSCRIBE, pkt, res)
	if err != nil {
		res <- result{err: err}
		return
	}

	for _, filter := range pkt.TopicFilters {
		_ = e.matcher.Unsubscribe(filter)
		e.removeCached(filter)
	}
	e.mx.subscriptions(e.cachedFilterCount())

	if e.state == StateConnected {
		e.transmit(r)
	}
}

// lookup returns the request for id if it is of kind and at stage.
func (e *engine) lookup(id uint16, kind, stage PacketType) *request {
	r, ok := e.requests[id]
	if !ok || r.kind != kind || r.stage.Type() != stage {
		return nil
	}
	return r
}

func (e *engine) publishDone(r *request) {
	pub := r.original.(*PublishPacket)
	e.stats.publishSent.Add(1)
	e.mx.published(pub.QoS, time.Since(r.started))
}

func newPublishError(r *request, ack Packet, code ReasonCode, reasonString string) error {
	pub := r.original.(*PublishPacket)
	return &PublishError{
		Topic:        pub.Topic,
		PacketID:     r.id,
		ReasonCode:   code,
		ReasonString: reasonString,
		Ack:          ack,
	}
}

func (e *engine) handlePuback(p *PubackPacket) {
	r := e.lookup(p.PacketID, PacketPUBLISH, PacketPUBLISH)
	if r == nil || r.original.(*PublishPacket).QoS != 1 {
		if !e.releaseRetired(p.PacketID) {
			e.trace(LogLevelDebug, "PUBACK for unknown packet id", LogFields{LogFieldPacketID: p.PacketID})
		}
		return
	}

	if p.ReasonCode.IsError() {
		e.finish(r, p, newPublishError(r, p, p.ReasonCode, p.ReasonString()))
		return
	}
	e.publishDone(r)
	e.finish(r, p, nil)
}

func (e *engine) handlePubrec(p *PubrecPacket) {
	r, ok := e.requests[p.PacketID]
	if !ok || r.kind != PacketPUBLISH || r.original.(*PublishPacket).QoS != 2 {
		e.writePacket(&PubrelPacket{PacketID: p.PacketID, ReasonCode: ReasonPacketIDNotFound})
		return
	}

	if p.ReasonCode.IsError() {
		e.finish(r, p, newPublishError(r, p, p.ReasonCode, p.ReasonString()))
		return
	}

	if r.stage.Type() == PacketPUBLISH {
		r.stage = &PubrelPacket{PacketID: r.id}
	}
	e.transmit(r)
}

func (e *engine) handlePubcomp(p *PubcompPacket) {
	r := e.lookup(p.PacketID, PacketPUBLISH, PacketPUBREL)
	if r == nil {
		if !e.releaseRetired(p.PacketID) {
			e.trace(LogLevelDebug, "PUBCOMP for unknown packet id", LogFields{LogFieldPacketID: p.PacketID})
		}
		return
	}

	e.publishDone(r)
	e.finish(r, p, nil)
}

func (e *engine) handleSuback(p *SubackPacket) {
	r := e.lookup(p.PacketID, PacketSUBSCRIBE, PacketSUBSCRIBE)
	if r == nil {
		if !e.releaseRetired(p.PacketID) {
			e.trace(LogLevelDebug, "SUBACK for unknown packet id", LogFields{LogFieldPacketID: p.PacketID})
		}
		return
	}

	sub := r.original.(*SubscribePacket)
	granted := make([]Subscription, 0, len(sub.Subscriptions))
	var failed *SubscribeError

	for i, s := range sub.Subscriptions {
		code := ReasonUnspecifiedError
		if i < len(p.ReasonCodes) {
			code = p.ReasonCodes[i]
		}
		if !code.IsError() {
			granted = append(granted, s)
			continue
		}

		if failed == nil {
			failed = &SubscribeError{}
		}
		failed.Filters = append(failed.Filters, s.TopicFilter)
		failed.ReasonCodes = append(failed.ReasonCodes, code)
		e.restoreHandler(r, s.TopicFilter)
	}

	if len(granted) > 0 {
		e.cache(sub, granted)
	}

	var err error
	if failed != nil {
		err = failed
		e.trace(LogLevelWarn, "subscription refused", LogFields{LogFieldError: failed.Error()})
	}
	e.finish(r, p, err)
}

// restoreHandler undoes what r did to the handler of a filter the broker
// did not grant. A handler that r replaced is put back.
func (e *engine) restoreHandler(r *request, filter string) {
	prev, installed := r.previous[filter]
	if !installed {
		if r.resubscribe {
			_ = e.matcher.Unsubscribe(filter)
		}
		return
	}
	delete(r.previous, filter)

	if prev != nil {
		_ = e.matcher.Subscribe(filter, prev)
		return
	}
	_ = e.matcher.Unsubscribe(filter)
}

func (e *engine) handleUnsuback(p *UnsubackPacket) {
	r := e.lookup(p.PacketID, PacketUNSUBSCRIBE, PacketUNSUBSCRIBE)
	if r == nil {
		if !e.releaseRetired(p.PacketID) {
			e.trace(LogLevelDebug, "UNSUBACK for unknown packet id", LogFields{LogFieldPacketID: p.PacketID})
		}
		return
	}
	e.finish(r, p, nil)
}

func (e *engine) handlePublish(p *PublishPacket) {
	if alias := p.TopicAlias(); alias != 0 {
		var err error
		if p.Topic != "" {
			err = e.aliases.SetInbound(alias, p.Topic)
		} else {
			p.Topic, err = e.aliases.ResolveInbound(alias)
		}
		if err != nil {
			e.protocolViolation(ReasonTopicAliasInvalid, err)
			return
		}
	}

	msg := p.ToMessage()
	switch p.QoS {
	case 0:
		e.deliver(msg)
	case 1:
		e.writePacket(&PubackPacket{PacketID: p.PacketID})
		if !p.DUP {
			e.deliver(msg)
		}
	case 2:
		if _, ok := e.incoming[p.PacketID]; !ok {
			e.incoming[p.PacketID] = msg
		}
		e.writePacket(&PubrecPacket{PacketID: p.PacketID})
	}
}

func (e *engine) handlePubrel(p *PubrelPacket) {
	msg, ok := e.incoming[p.PacketID]
	if !ok {
		e.writePacket(&PubcompPacket{PacketID: p.PacketID, ReasonCode: ReasonPacketIDNotFound})
		return
	}

	delete(e.incoming, p.PacketID)
	e.deliver(msg)
	e.writePacket(&PubcompPacket{PacketID: p.PacketID})
}

// deliver hands msg to every matching handler on the dispatch goroutine.
func (e *engine) deliver(msg *Message) {
	handlers, err := e.matcher.Match(msg.Topic)
	if err != nil {
		e.trace(LogLevelWarn, "undeliverable message", LogFields{
			LogFieldTopic: msg.Topic,
			LogFieldError: err.Error(),
		})
		return
	}

	e.stats.publishReceived.Add(1)
	e.mx.messageReceived(msg.QoS)

	for _, h := range handlers {
		e.notify.run(func() { h(msg) })
	}
}
