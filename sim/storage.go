// Implements PacketStorage, the bounded FIFO owned by every Relay.

package sim

import (
	"fmt"
	"strings"
)

// PacketStorage is a bounded FIFO queue of packets.
type PacketStorage struct {
	capacity int
	queue    []*Packet
}

// NewPacketStorage creates a storage holding at most capacity packets.
func NewPacketStorage(capacity int) *PacketStorage {
	if capacity <= 0 {
		panic(fmt.Sprintf("NewPacketStorage: capacity must be positive, got %d", capacity))
	}
	return &PacketStorage{capacity: capacity, queue: make([]*Packet, 0, capacity)}
}

// Enqueue adds a packet at the tail. It returns false, leaving the storage
// untouched, when the storage is full.
func (ps *PacketStorage) Enqueue(p *Packet) bool {
	if p == nil {
		panic("Enqueue: packet must not be nil")
	}
	if ps.Full() {
		return false
	}
	ps.queue = append(ps.queue, p)
	return true
}

// Peek returns the head without removing it, or nil when empty.
func (ps *PacketStorage) Peek() *Packet {
	if len(ps.queue) == 0 {
		return nil
	}
	return ps.queue[0]
}

// Remove deletes the packet with the given ID wherever it sits.
func (ps *PacketStorage) Remove(id PacketID) bool {
	for i, p := range ps.queue {
		if p.ID == id {
			ps.queue = append(ps.queue[:i], ps.queue[i+1:]...)
			return true
		}
	}
	return false
}

// Position returns the queue index of the packet, or -1.
func (ps *PacketStorage) Position(id PacketID) int {
	for i, p := range ps.queue {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Contains reports whether the packet is stored here.
func (ps *PacketStorage) Contains(id PacketID) bool {
	return ps.Position(id) >= 0
}

func (ps *PacketStorage) Len() int   { return len(ps.queue) }
func (ps *PacketStorage) Cap() int   { return ps.capacity }
func (ps *PacketStorage) Full() bool { return len(ps.queue) >= ps.capacity }

func (ps *PacketStorage) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, p := range ps.queue {
		sb.WriteString(fmt.Sprint(p.ID))
		if i < len(ps.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString(fmt.Sprintf("] %d/%d", len(ps.queue), ps.capacity))
	return sb.String()
}
