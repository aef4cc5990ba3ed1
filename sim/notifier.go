package sim

import "github.com/sirupsen/logrus"

// Notifier receives gameplay notifications for external collaborators
// (HUD, audio). Implementations must not mutate simulation state.
type Notifier interface {
	PacketDelivered(p *Packet, sink *System)
	PacketLost(p *Packet, reason string)
	StorageOverflow(system *System, p *Packet)
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) PacketDelivered(*Packet, *System) {}
func (NopNotifier) PacketLost(*Packet, string)       {}
func (NopNotifier) StorageOverflow(*System, *Packet) {}

// LogNotifier writes notifications to the logrus logger.
type LogNotifier struct{}

func (LogNotifier) PacketDelivered(p *Packet, sink *System) {
	logrus.Infof("delivered packet %d (%s) at %q", p.ID, p.Kind, sink.Label)
}

func (LogNotifier) PacketLost(p *Packet, reason string) {
	logrus.Warnf("lost packet %d (%s): %s", p.ID, p.Kind, reason)
}

func (LogNotifier) StorageOverflow(s *System, p *Packet) {
	logrus.Warnf("storage of %q overflowed by packet %d", s.Label, p.ID)
}
