package mqttws

import "sort"

// resume continues outstanding work on a new connection. Without a session
// on the broker every request restarts from its original packet and the
// subscription cache is replayed first.
func (e *engine) resume(sessionPresent bool) {
	reqs := make([]*request, 0, len(e.requests))
	for _, r := range e.requests {
		r.holdsQuota = false
		reqs = append(reqs, r)
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].seq < reqs[j].seq })

	e.pending = nil

	if !sessionPresent {
		clear(e.incoming)
		e.releaseAllRetired()
		e.resubscribe()
	}

	remapped := make(map[string]bool)
	for _, r := range reqs {
		if e.failure != nil {
			return
		}
		if e.requests[r.id] != r {
			continue
		}

		switch r.kind {
		case PacketPUBLISH:
			e.resumePublish(r, sessionPresent, remapped)
		default:
			e.transmit(r)
		}
	}

	queued := e.queued
	e.queued = nil
	for _, pkt := range queued {
		if e.failure != nil {
			e.queued = append(e.queued, pkt)
			continue
		}
		e.restoreTopic(pkt, remapped)
		if err := e.writePacket(pkt); err != nil {
			if e.failure != nil {
				e.queued = append(e.queued, pkt)
			}
			continue
		}
		e.stats.publishSent.Add(1)
		e.mx.published(0, 0)
	}
}

func (e *engine) resumePublish(r *request, sessionPresent bool, remapped map[string]bool) {
	if !sessionPresent {
		r.stage = r.original.(*PublishPacket).clone()
	}

	pub, ok := r.stage.(*PublishPacket)
	if !ok {
		// PUBREL stage: the broker still counts it against its receive
		// maximum until PUBCOMP.
		r.holdsQuota = e.quota.TryAcquire()
		e.transmit(r)
		return
	}

	e.restoreTopic(pub, remapped)
	if r.sent {
		pub.DUP = true
	}
	e.sendPublish(r)
}

// restoreTopic puts the topic name back into an alias-only publish. Aliases
// do not survive a connection, so the first publish per topic on the new
// connection carries both the topic and the alias again.
func (e *engine) restoreTopic(pub *PublishPacket, remapped map[string]bool) {
	if pub.Topic != "" {
		remapped[pub.Topic] = true
		return
	}

	topic, ok := e.aliases.OutboundTopic(pub.TopicAlias())
	if !ok || remapped[topic] {
		return
	}
	pub.Topic = topic
	remapped[topic] = true
}

// resubscribe replays every cached SUBSCRIBE. Entries return to the cache
// once their SUBACK grants them.
func (e *engine) resubscribe() {
	cached := e.subs
	e.subs = nil
	e.mx.subscriptions(0)

	for _, sub := range cached {
		pkt := sub.Clone()
		r, err := e.register(PacketSUBSCRIBE, pkt, make(chan result, 1))
		if err != nil {
			e.notify.emit(ResubscriptionEvent{Subscribe: sub, Err: err})
			continue
		}
		r.resubscribe = true
		e.trace(LogLevelInfo, "resubscribing", LogFields{LogFieldTopic: pkt.Filters()})
		e.transmit(r)
	}
}

// cache records the granted part of sub. Filters already cached are
// replaced.
func (e *engine) cache(sub *SubscribePacket, granted []Subscription) {
	for _, s := range granted {
		e.removeCached(s.TopicFilter)
	}

	entry := sub.Clone()
	entry.PacketID = 0
	entry.Subscriptions = append([]Subscription(nil), granted...)
	e.subs = append(e.subs, entry)
	e.mx.subscriptions(e.cachedFilterCount())
}

// removeCached drops filter from the cache and any entry left empty.
func (e *engine) removeCached(filter string) {
	kept := e.subs[:0]
	for _, sub := range e.subs {
		subs := sub.Subscriptions[:0]
		for _, s := range sub.Subscriptions {
			if s.TopicFilter != filter {
				subs = append(subs, s)
			}
		}
		sub.Subscriptions = subs
		if len(subs) > 0 {
			kept = append(kept, sub)
		}
	}
	clear(e.subs[len(kept):])
	e.subs = kept
}

func (e *engine) cachedFilterCount() int {
	n := 0
	for _, sub := range e.subs {
		n += len(sub.Subscriptions)
	}
	return n
}

func (e *engine) subscriptionCache() []*SubscribePacket {
	out := make([]*SubscribePacket, len(e.subs))
	for i, sub := range e.subs {
		out[i] = sub.Clone()
	}
	return out
}

// rejectAll resolves every outstanding request with err and drops queued
// publishes.
func (e *engine) rejectAll(err error) {
	reqs := make([]*request, 0, len(e.requests))
	for _, r := range e.requests {
		reqs = append(reqs, r)
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].seq < reqs[j].seq })

	e.pending = nil
	for _, r := range reqs {
		e.finish(r, nil, err)
	}

	if n := len(e.queued); n > 0 {
		e.trace(LogLevelWarn, "dropping queued publishes", LogFields{"count": n})
		e.queued = nil
	}
	clear(e.incoming)
	e.mx.pending(0)
	e.mx.inflight(0)
}
