package linksim

import (
	"math/rand/v2"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/thp/transport"
)

// Direction names one half of the link.
type Direction uint8

const (
	HostToDevice Direction = iota
	DeviceToHost
)

func (d Direction) String() string {
	if d == HostToDevice {
		return "host->device"
	}
	return "device->host"
}

// Config sets the impairment probabilities of a Link, each in [0, 1].
type Config struct {
	DropRate      float64
	DuplicateRate float64
	CorruptRate   float64
	Seed          uint64
	// ProtectBroadcast exempts channel allocation traffic from impairments.
	ProtectBroadcast bool
}

// DeliveryRecord represents one Send for test verification.
type DeliveryRecord struct {
	Direction  Direction
	PacketSize int
	Dropped    bool
	Duplicated bool
	Corrupted  bool
}

// Stats summarises the delivery log.
type Stats struct {
	Sent       int
	Delivered  int
	Dropped    int
	Duplicated int
	Corrupted  int
}

// Link is a lossy two-way packet link.
type Link struct {
	config      Config
	rng         *rand.Rand
	queues      [2][][]byte
	deliveryLog []DeliveryRecord
	mu          sync.Mutex
}

// New creates a link with the given impairments.
func New(config Config) *Link {
	logrus.WithFields(logrus.Fields{
		"function":       "linksim.New",
		"drop_rate":      config.DropRate,
		"duplicate_rate": config.DuplicateRate,
		"corrupt_rate":   config.CorruptRate,
		"seed":           config.Seed,
	}).Debug("Creating simulated link")

	return &Link{
		config: config,
		rng:    rand.New(rand.NewPCG(config.Seed, config.Seed^0x9E3779B97F4A7C15)),
	}
}

// Send copies packet onto the link in direction dir, applying impairments.
func (l *Link) Send(dir Direction, packet []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := DeliveryRecord{Direction: dir, PacketSize: len(packet)}
	if l.config.ProtectBroadcast && isBroadcast(packet) {
		l.queues[dir] = append(l.queues[dir], append([]byte(nil), packet...))
		l.deliveryLog = append(l.deliveryLog, rec)
		return
	}
	if l.roll(l.config.DropRate) {
		rec.Dropped = true
		l.deliveryLog = append(l.deliveryLog, rec)
		logrus.WithFields(logrus.Fields{
			"function":  "Link.Send",
			"direction": dir.String(),
		}).Debug("Packet dropped")
		return
	}

	p := append([]byte(nil), packet...)
	if len(p) > 0 && l.roll(l.config.CorruptRate) {
		rec.Corrupted = true
		p[l.rng.IntN(len(p))] ^= 1 << l.rng.IntN(8)
	}
	l.queues[dir] = append(l.queues[dir], p)

	if l.roll(l.config.DuplicateRate) {
		rec.Duplicated = true
		l.queues[dir] = append(l.queues[dir], append([]byte(nil), p...))
	}
	l.deliveryLog = append(l.deliveryLog, rec)
}

func isBroadcast(packet []byte) bool {
	h, err := transport.ParseHeader(packet)
	return err == nil && h.ChannelID == transport.BroadcastChannelID
}

func (l *Link) roll(p float64) bool {
	return p > 0 && l.rng.Float64() < p
}

// Receive pops the oldest packet queued in direction dir.
func (l *Link) Receive(dir Direction) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	q := l.queues[dir]
	if len(q) == 0 {
		return nil, false
	}
	p := q[0]
	q[0] = nil
	l.queues[dir] = q[1:]
	return p, true
}

// Pending returns the number of packets queued in direction dir.
func (l *Link) Pending(dir Direction) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queues[dir])
}

// GetDeliveryLog returns a copy of the delivery log.
func (l *Link) GetDeliveryLog() []DeliveryRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	log := make([]DeliveryRecord, len(l.deliveryLog))
	copy(log, l.deliveryLog)
	return log
}

// ClearDeliveryLog empties the delivery log. Queued packets are kept.
func (l *Link) ClearDeliveryLog() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deliveryLog = nil
}

// GetStats summarises the delivery log.
func (l *Link) GetStats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	var s Stats
	for _, rec := range l.deliveryLog {
		s.Sent++
		if rec.Dropped {
			s.Dropped++
			continue
		}
		s.Delivered++
		if rec.Duplicated {
			s.Duplicated++
			s.Delivered++
		}
		if rec.Corrupted {
			s.Corrupted++
		}
	}
	return s
}
