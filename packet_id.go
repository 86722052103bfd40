package mqttws

import (
	"errors"
	"sync"
)

// ErrPacketIDExhausted is returned when all 65535 packet identifiers are in use.
var ErrPacketIDExhausted = errors.New("no available packet IDs")

const maxPacketIDs = 65535

// PacketIDAllocator hands out packet identifiers in [1, 65535]. The search
// resumes after the last identifier handed out, so a freed identifier is only
// reused once the cursor has wrapped around.
type PacketIDAllocator struct {
	mu   sync.Mutex
	used map[uint16]struct{}
	last uint16
}

// NewPacketIDAllocator returns an allocator with every identifier free.
func NewPacketIDAllocator() *PacketIDAllocator {
	return &PacketIDAllocator{
		used: make(map[uint16]struct{}),
	}
}

// NextID reserves and returns the first free identifier after the last one.
func (a *PacketIDAllocator) NextID() (uint16, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.used) >= maxPacketIDs {
		return 0, ErrPacketIDExhausted
	}

	id := a.last
	for range maxPacketIDs {
		id++
		if id == 0 {
			id = 1
		}
		if _, taken := a.used[id]; !taken {
			a.used[id] = struct{}{}
			a.last = id
			return id, nil
		}
	}

	return 0, ErrPacketIDExhausted
}

// FreeID releases id. Identifiers not in use are ignored.
func (a *PacketIDAllocator) FreeID(id uint16) {
	a.mu.Lock()
	delete(a.used, id)
	a.mu.Unlock()
}

// InUse returns the number of reserved identifiers.
func (a *PacketIDAllocator) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.used)
}
