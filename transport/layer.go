package transport

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/opd-ai/thp/limits"
)

// LayerTypeTHP identifies a THP packet for gopacket decoding.
var LayerTypeTHP = gopacket.RegisterLayerType(
	1209,
	gopacket.LayerTypeMetadata{Name: "THP", Decoder: gopacket.DecodeFunc(decodeTHP)},
)

// Layer is a gopacket view of one THP packet. For init packets Payload holds
// the message bytes present in this packet, without the checksum and padding.
type Layer struct {
	layers.BaseLayer
	Header
	// Checksum is the trailing CRC when the whole message fits in the packet.
	Checksum      uint32
	ChecksumValid bool
	// Truncated is set when the declared length runs past the packet.
	Truncated bool
}

// LayerType implements gopacket.Layer.
func (l *Layer) LayerType() gopacket.LayerType { return LayerTypeTHP }

// CanDecode implements gopacket.DecodingLayer.
func (l *Layer) CanDecode() gopacket.LayerClass { return LayerTypeTHP }

// NextLayerType implements gopacket.DecodingLayer.
func (l *Layer) NextLayerType() gopacket.LayerType { return gopacket.LayerTypePayload }

// DecodeFromBytes implements gopacket.DecodingLayer.
func (l *Layer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	h, err := ParseHeader(data)
	if err != nil {
		df.SetTruncated()
		return err
	}
	l.Header = h
	l.Checksum, l.ChecksumValid, l.Truncated = 0, false, false

	hl := h.Size()
	if h.Kind == KindContinuation {
		l.BaseLayer = layers.BaseLayer{Contents: data[:hl], Payload: data[hl:]}
		return nil
	}

	end := hl + int(h.Length)
	if end > len(data) {
		l.Truncated = true
		df.SetTruncated()
		l.BaseLayer = layers.BaseLayer{Contents: data[:hl], Payload: data[hl:]}
		return nil
	}
	crcAt := end - limits.ChecksumLen
	l.Checksum = readChecksum(data[crcAt:end])
	l.ChecksumValid = checksum(data[:crcAt]) == l.Checksum
	l.BaseLayer = layers.BaseLayer{Contents: data[:hl], Payload: data[hl:crcAt]}
	return nil
}

// SerializeTo implements gopacket.SerializableLayer. The bytes already in b
// are the message payload; init packets get the checksum appended.
func (l *Layer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	payloadLen := len(b.Bytes())
	if l.Kind == KindContinuation {
		hdr, err := b.PrependBytes(limits.ContinuationHeaderLen)
		if err != nil {
			return err
		}
		_, err = l.Header.Put(hdr)
		return err
	}

	if opts.FixLengths {
		l.Length = uint16(payloadLen + limits.ChecksumLen)
	}
	if l.PayloadLen() != payloadLen {
		return fmt.Errorf("%w: header declares %d payload bytes, buffer has %d",
			ErrMalformedData, l.PayloadLen(), payloadLen)
	}
	if err := l.validate(); err != nil {
		return err
	}

	hdr, err := b.PrependBytes(limits.InitHeaderLen)
	if err != nil {
		return err
	}
	if _, err := l.Header.Put(hdr); err != nil {
		return err
	}
	sum := checksum(b.Bytes())
	tail, err := b.AppendBytes(limits.ChecksumLen)
	if err != nil {
		return err
	}
	putChecksum(tail, sum)
	l.Checksum, l.ChecksumValid = sum, true
	return nil
}

func decodeTHP(data []byte, p gopacket.PacketBuilder) error {
	l := &Layer{}
	if err := l.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(l)
	return p.NextDecoder(gopacket.LayerTypePayload)
}
