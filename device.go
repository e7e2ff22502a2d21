package thp

import (
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

// DeviceConfig configures the device side of a channel.
type DeviceConfig struct {
	// StaticKey is the device's long-term key pair.
	StaticKey *crypto.KeyPair
	// Verifier decides the pairing state of the presented credential.
	Verifier credential.Verifier
	// Properties are advertised in the allocation response and bound into
	// the handshake transcript.
	Properties []byte
	// Locked rejects hosts that do not ask to unlock with DEVICE_LOCKED.
	Locked bool
}

type deviceRole struct {
	config DeviceConfig
	cid    uint16
}

// NewDeviceChannelOpen answers the allocation request packet with channel id
// cid. The response is queued on the broadcast channel; the ChannelOpen moves
// to cid once it has been sent.
func NewDeviceChannelOpen(request []byte, cid uint16, config DeviceConfig, opts *Options) (*ChannelOpen, error) {
	if config.StaticKey == nil {
		return nil, errors.New("thp: device config without static key")
	}
	if config.Verifier == nil {
		return nil, errors.New("thp: device config without credential verifier")
	}
	if err := limits.ValidateDeviceProperties(config.Properties); err != nil {
		return nil, err
	}
	if cid == transport.BroadcastChannelID {
		return nil, fmt.Errorf("%w: cannot allocate the broadcast id", ErrMalformedData)
	}

	h, nonce, err := transport.Single(request)
	if err != nil {
		return nil, err
	}
	if h.Kind != transport.KindChannelRequest {
		return nil, fmt.Errorf("%w: %s is not an allocation request", ErrUnexpectedInput, h.Kind)
	}
	if len(nonce) != limits.NonceLen {
		return nil, fmt.Errorf("%w: allocation nonce of %d bytes", ErrMalformedData, len(nonce))
	}

	r := &deviceRole{config: config, cid: cid}
	o, err := newChannelOpen(r, opts, StateSentChannelResponse)
	if err != nil {
		return nil, err
	}

	n := copy(o.sendBuf[:], nonce)
	binary.BigEndian.PutUint16(o.sendBuf[n:], cid)
	n += 2
	n += copy(o.sendBuf[n:], config.Properties)
	if err := o.queue(transport.KindChannelResponse, o.sendBuf[:n]); err != nil {
		return nil, err
	}

	o.handshake, err = noise.NewHandshake(o.opts.Backend, config.StaticKey, noise.Responder, config.Properties)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":   "NewDeviceChannelOpen",
		"channel_id": cid,
		"locked":     config.Locked,
	}).Info("Device channel open started")
	return o, nil
}

func (r *deviceRole) handshakeRole() noise.HandshakeRole { return noise.Responder }

func (r *deviceRole) finalState() OpenState { return StateSentCompletionResponse }

func (r *deviceRole) transitions() map[transition]step {
	return map[transition]step{
		{StateSentChannelResponse, transport.KindInitiationRequest}:    r.onInitiationRequest,
		{StateSentInitiationResponse, transport.KindCompletionRequest}: r.onCompletionRequest,
	}
}

func (r *deviceRole) retransmitAllocation(*ChannelOpen) bool { return false }

// afterBroadcast moves the channel to its allocated id.
func (r *deviceRole) afterBroadcast(o *ChannelOpen) error {
	return o.channel.Bind(r.cid)
}

func (r *deviceRole) onInitiationRequest(o *ChannelOpen, payload []byte) (OpenState, error) {
	tryToUnlock, err := o.handshake.ReadInitiationRequest(payload)
	if err != nil {
		return StateFailed, err
	}
	if r.config.Locked && !tryToUnlock {
		o.errBuf[0] = byte(transport.ErrorDeviceLocked)
		if err := o.queue(transport.KindError, o.errBuf[:]); err != nil {
			return StateFailed, err
		}
		return StateFailed, &TransportError{Code: transport.ErrorDeviceLocked, ChannelID: o.channel.ID()}
	}

	msg, err := o.handshake.WriteInitiationResponse(o.sendBuf[:])
	if err != nil {
		return StateFailed, err
	}
	if err := o.queue(transport.KindInitiationResponse, msg); err != nil {
		return StateFailed, err
	}
	return StateSentInitiationResponse, nil
}

func (r *deviceRole) onCompletionRequest(o *ChannelOpen, payload []byte) (OpenState, error) {
	cred, err := o.handshake.ReadCompletionRequest(payload, o.credBuf[:])
	if err != nil {
		return StateFailed, err
	}
	pairing, err := r.config.Verifier.Verify(o.handshake.RemoteStatic(), cred)
	crypto.ZeroBytes(o.credBuf[:])
	if err != nil {
		if !errors.Is(err, ErrMalformedData) {
			err = fmt.Errorf("%w: %w", ErrMalformedData, err)
		}
		return StateFailed, err
	}
	if !pairing.Valid() {
		return StateFailed, fmt.Errorf("%w: verifier returned pairing state %d", ErrMalformedData, pairing)
	}

	msg, err := o.handshake.WriteCompletionResponse(o.sendBuf[:], byte(pairing))
	if err != nil {
		return StateFailed, err
	}
	send, recv, err := o.handshake.Split()
	o.handshake = nil
	if err != nil {
		return StateFailed, err
	}
	if err := o.channel.InstallCipher(send, recv); err != nil {
		return StateFailed, err
	}
	if err := o.queue(transport.KindCompletionResponse, msg); err != nil {
		return StateFailed, err
	}

	logrus.WithFields(logrus.Fields{
		"function":      "onCompletionRequest",
		"channel_id":    o.channel.ID(),
		"pairing_state": pairing.String(),
	}).Info("Host credential accepted")
	o.pairing = pairing
	return StateSentCompletionResponse, nil
}
