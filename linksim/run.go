package linksim

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrNoProgress is returned by Run when MaxRounds pass without Done.
var ErrNoProgress = errors.New("linksim: session did not complete")

// Endpoint is one side of a session driven over the link.
type Endpoint interface {
	PacketIn(packet []byte) error
	PacketOut(packet []byte) (int, error)
	Retransmit() bool
	Failed() bool
}

// RunOptions controls Run.
type RunOptions struct {
	PacketLen int
	// MaxRounds bounds the session; zero means 1000.
	MaxRounds int
	// Done reports whether the session reached its goal.
	Done func() bool
	// RetransmitEvery makes both endpoints retransmit every n rounds while
	// packets are still in flight, as an impatient timer would. Zero
	// retransmits only on rounds where nothing moved.
	RetransmitEvery int
}

// Run drives host and device over the link until opts.Done reports true, an
// endpoint fails, or MaxRounds pass. Packet-level errors from PacketIn on an
// endpoint that did not fail are counted and otherwise ignored.
func (l *Link) Run(host, device Endpoint, opts RunOptions) error {
	if opts.Done == nil {
		return errors.New("linksim: RunOptions.Done is required")
	}
	rounds := opts.MaxRounds
	if rounds == 0 {
		rounds = 1000
	}
	packet := make([]byte, opts.PacketLen)
	var rejected int

	for round := 0; round < rounds; round++ {
		if opts.Done() {
			logrus.WithFields(logrus.Fields{
				"function": "Link.Run",
				"rounds":   round,
				"rejected": rejected,
			}).Debug("Session completed")
			return nil
		}

		moved := 0
		for _, side := range []struct {
			ep  Endpoint
			dir Direction
		}{{host, HostToDevice}, {device, DeviceToHost}} {
			for {
				n, err := side.ep.PacketOut(packet)
				if err != nil {
					return fmt.Errorf("%s packet out: %w", side.dir, err)
				}
				if n == 0 {
					break
				}
				l.Send(side.dir, packet[:n])
				moved++
			}
		}

		if opts.RetransmitEvery > 0 && round%opts.RetransmitEvery == opts.RetransmitEvery-1 {
			host.Retransmit()
			device.Retransmit()
		}

		for _, side := range []struct {
			ep  Endpoint
			dir Direction
		}{{device, HostToDevice}, {host, DeviceToHost}} {
			for {
				p, ok := l.Receive(side.dir)
				if !ok {
					break
				}
				if err := side.ep.PacketIn(p); err != nil {
					if side.ep.Failed() {
						return err
					}
					rejected++
				}
			}
		}

		if moved == 0 {
			host.Retransmit()
			device.Retransmit()
		}
	}
	if opts.Done() {
		return nil
	}
	return ErrNoProgress
}
