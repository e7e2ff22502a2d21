package thp

import (
	"errors"

	"github.com/opd-ai/thp/crypto"
	"github.com/opd-ai/thp/limits"
)

// Options contains configuration shared by both roles.
type Options struct {
	// PacketLen is the fixed link packet size.
	PacketLen int
	// Backend supplies randomness and the Noise cipher suite.
	Backend crypto.Backend
}

// NewOptions creates a new Options with default values.
func NewOptions() *Options {
	return &Options{
		PacketLen: limits.DefaultPacketLen,
		Backend:   crypto.DefaultBackend(),
	}
}

func (o *Options) validate() error {
	if o.Backend == nil {
		return errors.New("thp: options without backend")
	}
	return limits.ValidatePacketLen(o.PacketLen)
}
