package mqttws

import (
	"errors"
	"time"
)

// ErrKeepAliveTimeout is reported when no PINGRESP arrived within one
// keep alive interval of the previous PINGREQ.
var ErrKeepAliveTimeout = errors.New("PINGRESP not received within keep alive")

// pinger drives the keep alive exchange. It is owned by the event loop;
// fire is called from the timer goroutine and must hand control back to
// the loop.
type pinger struct {
	interval    time.Duration
	timer       *time.Timer
	outstanding bool
	fire        func()
}

// start arms the pinger for a new connection. A zero interval disables it.
func (p *pinger) start(interval time.Duration, fire func()) {
	p.stop()
	p.interval = interval
	p.outstanding = false
	p.fire = fire
	p.arm()
}

func (p *pinger) arm() {
	if p.interval <= 0 || p.fire == nil {
		return
	}
	p.timer = time.AfterFunc(p.interval, p.fire)
}

// expired handles an elapsed interval. It reports ErrKeepAliveTimeout when
// the previous PINGREQ is still unanswered; otherwise the caller sends a
// PINGREQ and the pinger is rearmed.
func (p *pinger) expired() error {
	if p.outstanding {
		return ErrKeepAliveTimeout
	}
	p.outstanding = true
	p.arm()
	return nil
}

// pong records a PINGRESP.
func (p *pinger) pong() {
	p.outstanding = false
}

func (p *pinger) stop() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.fire = nil
}
