package thp

import (
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/thp/credential"
	"github.com/opd-ai/thp/crypto"
	"github.com/opd-ai/thp/limits"
	"github.com/opd-ai/thp/noise"
	"github.com/opd-ai/thp/transport"
)

// HostConfig configures the host side of a channel.
type HostConfig struct {
	// StaticKey is the host's long-term key pair.
	StaticKey *crypto.KeyPair
	// Store selects the credential presented to the device. Nil presents none.
	Store credential.Store
	// TryToUnlock asks a locked device to prompt for unlocking.
	TryToUnlock bool
}

type hostRole struct {
	config        HostConfig
	nonce         [limits.NonceLen]byte
	properties    [limits.MaxDevicePropertiesLen]byte
	propertiesLen int
}

// NewHostChannelOpen generates a fresh allocation nonce and queues the
// channel allocation request on the broadcast channel.
func NewHostChannelOpen(config HostConfig, opts *Options) (*ChannelOpen, error) {
	if config.StaticKey == nil {
		return nil, errors.New("thp: host config without static key")
	}
	r := &hostRole{config: config}
	o, err := newChannelOpen(r, opts, StateSentChannelRequest)
	if err != nil {
		return nil, err
	}
	if err := o.opts.Backend.RandomBytes(r.nonce[:]); err != nil {
		return nil, fmt.Errorf("thp: generate allocation nonce: %w", err)
	}
	if err := r.queueRequest(o); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":   "NewHostChannelOpen",
		"packet_len": o.opts.PacketLen,
		"has_store":  config.Store != nil,
		"try_unlock": config.TryToUnlock,
	}).Info("Host channel open started")
	return o, nil
}

func (r *hostRole) handshakeRole() noise.HandshakeRole { return noise.Initiator }

func (r *hostRole) finalState() OpenState { return StateFinished }

func (r *hostRole) transitions() map[transition]step {
	return map[transition]step{
		{StateSentChannelRequest, transport.KindChannelResponse}:      r.onChannelResponse,
		{StateSentInitiationRequest, transport.KindInitiationResponse}: r.onInitiationResponse,
		{StateSentCompletionRequest, transport.KindCompletionResponse}: r.onCompletionResponse,
	}
}

func (r *hostRole) queueRequest(o *ChannelOpen) error {
	n := copy(o.sendBuf[:], r.nonce[:])
	return o.queue(transport.KindChannelRequest, o.sendBuf[:n])
}

func (r *hostRole) retransmitAllocation(o *ChannelOpen) bool {
	if o.state != StateSentChannelRequest || o.channel.HasPending() {
		return false
	}
	return r.queueRequest(o) == nil
}

func (r *hostRole) afterBroadcast(*ChannelOpen) error { return nil }

// DeviceProperties returns the properties advertised in the allocation
// response, or nil before it arrived. Only meaningful for a host.
func (o *ChannelOpen) DeviceProperties() []byte {
	r, ok := o.role.(*hostRole)
	if !ok || o.state == StateSentChannelRequest {
		return nil
	}
	return r.properties[:r.propertiesLen]
}

func (r *hostRole) onChannelResponse(o *ChannelOpen, payload []byte) (OpenState, error) {
	if len(payload) < limits.NonceLen+2 {
		return StateFailed, fmt.Errorf("%w: allocation response of %d bytes", ErrMalformedData, len(payload))
	}
	if subtle.ConstantTimeCompare(payload[:limits.NonceLen], r.nonce[:]) != 1 {
		return StateFailed, fmt.Errorf("%w: allocation nonce mismatch", ErrMalformedData)
	}
	cid := binary.BigEndian.Uint16(payload[limits.NonceLen:])
	properties := payload[limits.NonceLen+2:]
	if err := limits.ValidateDeviceProperties(properties); err != nil {
		return StateFailed, fmt.Errorf("%w: %w", ErrMalformedData, err)
	}
	if err := o.channel.Bind(cid); err != nil {
		return StateFailed, err
	}
	r.propertiesLen = copy(r.properties[:], properties)
	crypto.ZeroBytes(r.nonce[:])

	hs, err := noise.NewHandshake(o.opts.Backend, r.config.StaticKey, noise.Initiator, r.properties[:r.propertiesLen])
	if err != nil {
		return StateFailed, err
	}
	o.handshake = hs

	msg, err := hs.WriteInitiationRequest(o.sendBuf[:], r.config.TryToUnlock)
	if err != nil {
		return StateFailed, err
	}
	if err := o.queue(transport.KindInitiationRequest, msg); err != nil {
		return StateFailed, err
	}
	return StateSentInitiationRequest, nil
}

func (r *hostRole) onInitiationResponse(o *ChannelOpen, payload []byte) (OpenState, error) {
	if err := o.handshake.ReadInitiationResponse(payload); err != nil {
		return StateFailed, err
	}

	var cred []byte
	if r.config.Store != nil {
		var err error
		cred, err = r.config.Store.Credential(o.handshake.RemoteStatic())
		if err != nil {
			return StateFailed, fmt.Errorf("thp: credential lookup: %w", err)
		}
	}
	logrus.WithFields(logrus.Fields{
		"function":       "onInitiationResponse",
		"channel_id":     o.channel.ID(),
		"has_credential": len(cred) > 0,
	}).WithFields(crypto.SecureFieldHash(o.handshake.RemoteStatic(), "device_static")).Debug("Device static key received")

	msg, err := o.handshake.WriteCompletionRequest(o.sendBuf[:], cred)
	if err != nil {
		return StateFailed, err
	}
	if err := o.queue(transport.KindCompletionRequest, msg); err != nil {
		return StateFailed, err
	}
	return StateSentCompletionRequest, nil
}

func (r *hostRole) onCompletionResponse(o *ChannelOpen, payload []byte) (OpenState, error) {
	state, err := o.handshake.ReadCompletionResponse(payload)
	if err != nil {
		return StateFailed, err
	}
	pairing := credential.PairingState(state)
	if !pairing.Valid() {
		return StateFailed, fmt.Errorf("%w: pairing state %d", ErrMalformedData, state)
	}

	send, recv, err := o.handshake.Split()
	o.handshake = nil
	if err != nil {
		return StateFailed, err
	}
	if err := o.channel.InstallCipher(send, recv); err != nil {
		return StateFailed, err
	}
	o.pairing = pairing
	return StateFinished, nil
}
