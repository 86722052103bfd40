package mqttws

import "sync"

// FlowController is the send quota for QoS 1 and 2 publishes. The quota
// starts at the broker's Receive Maximum, is taken when a publish goes on
// the wire and is returned on its terminal acknowledgement.
type FlowController struct {
	mu             sync.Mutex
	receiveMaximum uint16
	inFlight       uint16
}

// NewFlowController returns a controller for receiveMaximum slots.
// Zero selects the protocol default of 65535.
func NewFlowController(receiveMaximum uint16) *FlowController {
	if receiveMaximum == 0 {
		receiveMaximum = defaultReceiveMaximum
	}
	return &FlowController{receiveMaximum: receiveMaximum}
}

// TryAcquire takes one slot, reporting false when none is left.
func (f *FlowController) TryAcquire() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inFlight >= f.receiveMaximum {
		return false
	}
	f.inFlight++
	return true
}

// Release returns one slot. The in-flight count never goes below zero.
func (f *FlowController) Release() {
	f.mu.Lock()
	if f.inFlight > 0 {
		f.inFlight--
	}
	f.mu.Unlock()
}

// Reset empties the controller and applies a new receive maximum, as after
// a new CONNACK.
func (f *FlowController) Reset(receiveMaximum uint16) {
	if receiveMaximum == 0 {
		receiveMaximum = defaultReceiveMaximum
	}

	f.mu.Lock()
	f.receiveMaximum = receiveMaximum
	f.inFlight = 0
	f.mu.Unlock()
}

// Available returns the number of free slots.
func (f *FlowController) Available() uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inFlight >= f.receiveMaximum {
		return 0
	}
	return f.receiveMaximum - f.inFlight
}

// InFlight returns the number of taken slots.
func (f *FlowController) InFlight() uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

// ReceiveMaximum returns the current limit.
func (f *FlowController) ReceiveMaximum() uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receiveMaximum
}
