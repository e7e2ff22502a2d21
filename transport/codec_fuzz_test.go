package transport

import (
	"bytes"
	"testing"
)

// FuzzSingle checks that arbitrary packets never panic the parser and that
// accepted packets re-encode to the same message.
func FuzzSingle(f *testing.F) {
	valid := make([]byte, 64)
	if _, err := Encode(valid, Header{Kind: KindEncrypted, ChannelID: 1, Bit: 1}, []byte("seed")); err != nil {
		f.Fatal(err)
	}
	f.Add(valid)
	f.Add([]byte{})
	f.Add([]byte{0x80, 0x00, 0x01})
	f.Add([]byte{0x40, 0x00, 0x00, 0xFF, 0xFF})
	f.Add(make([]byte, 244))

	f.Fuzz(func(t *testing.T, data []byte) {
		h, payload, err := Single(data)
		if err != nil {
			return
		}
		out := make([]byte, len(payload)+9)
		if _, err := Encode(out, h, payload); err != nil {
			t.Fatalf("re-encode of accepted packet failed: %v", err)
		}
		_, again, err := Single(out)
		if err != nil || !bytes.Equal(again, payload) {
			t.Fatalf("re-encoded packet does not round trip: %v", err)
		}
	})
}

// FuzzReassembler feeds arbitrary data split into 64-byte packets.
func FuzzReassembler(f *testing.F) {
	var frag Fragmenter
	_ = frag.Load(Header{Kind: KindEncrypted, ChannelID: 1}, bytes.Repeat([]byte{0x5A}, 150))
	var seed []byte
	for {
		p := make([]byte, 64)
		n, _ := frag.Next(p)
		if n == 0 {
			break
		}
		seed = append(seed, p...)
	}
	f.Add(seed)
	f.Add([]byte{0x80, 0x00, 0x01, 0x00})

	f.Fuzz(func(t *testing.T, data []byte) {
		var r Reassembler
		dst := make([]byte, 256)
		for i := 0; i < len(data); i += 64 {
			end := min(i+64, len(data))
			p := data[i:end]
			if i == 0 {
				_, _ = r.Start(p, dst)
			} else {
				_, _ = r.Feed(p)
			}
		}
	})
}
