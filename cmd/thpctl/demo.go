package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opd-ai/thp"
	"github.com/opd-ai/thp/channel"
	"github.com/opd-ai/thp/credential"
	"github.com/opd-ai/thp/crypto"
	"github.com/opd-ai/thp/limits"
	"github.com/opd-ai/thp/linksim"
)

var (
	demoDrop      float64
	demoDuplicate float64
	demoCorrupt   float64
	demoSeed      uint64
	demoChannel   uint16
	demoLocked    bool
	demoUnlock    bool
	demoPersist   bool
	demoMessage   string
	demoMaxRounds int
)

// pairingStore is a credential store the demo can write to.
type pairingStore interface {
	credential.Store
	Put(deviceStatic, credential []byte) error
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run host/device sessions over a simulated lossy link",
	Long: `Demo creates a host and a device with fresh static keys and runs two
sessions between them over a simulated link. The first session pairs without
a credential; the device then issues one, the host stores it, and the second
session pairs with it. A final application message is sent over the secured
channel.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := cfg.Options()
		if err != nil {
			return err
		}
		maxPayload := limits.MaxMessageLen - limits.ChecksumLen - limits.EncryptedLen(0)
		if err := limits.ValidateMessageSize([]byte(demoMessage), maxPayload); err != nil {
			return fmt.Errorf("demo message: %w", err)
		}

		hostKey, err := crypto.GenerateKeyPair(opts.Backend)
		if err != nil {
			return err
		}
		defer crypto.WipeKeyPair(hostKey)
		deviceKey, err := crypto.GenerateKeyPair(opts.Backend)
		if err != nil {
			return err
		}
		defer crypto.WipeKeyPair(deviceKey)
		issuer, err := credential.NewRandomIssuer(opts.Backend)
		if err != nil {
			return err
		}

		var store pairingStore = credential.NewMemoryStore()
		var fileStore *credential.FileStore
		if demoPersist {
			fileStore, err = credential.LoadFileStore(cfg.CredentialStore)
			if err != nil {
				return err
			}
			store = fileStore
		}

		d := &demo{
			out:  cmd.OutOrStdout(),
			opts: opts,
			host: thp.HostConfig{StaticKey: hostKey, Store: store, TryToUnlock: demoUnlock},
			device: thp.DeviceConfig{
				StaticKey:  deviceKey,
				Verifier:   issuer,
				Properties: []byte("thpctl demo device"),
				Locked:     demoLocked,
			},
		}

		if _, _, err := d.session("first", demoSeed); err != nil {
			return err
		}

		cred, err := issuer.Issue(hostKey.Public[:], false)
		if err != nil {
			return err
		}
		if err := store.Put(deviceKey.Public[:], cred); err != nil {
			return err
		}
		if fileStore != nil {
			fileStore.SetLabel(deviceKey.Public[:], "thpctl demo device")
			if err := fileStore.Save(); err != nil {
				return err
			}
			fmt.Fprintf(d.out, "credential saved to %s\n", fileStore.Path())
		}

		host, device, err := d.session("second", demoSeed+1)
		if err != nil {
			return err
		}
		return d.message(host.Channel(), device.Channel())
	},
}

type demo struct {
	out    io.Writer
	opts   *thp.Options
	host   thp.HostConfig
	device thp.DeviceConfig
}

func (d *demo) session(name string, seed uint64) (*linksim.HostSession, *linksim.DeviceSession, error) {
	link := linksim.New(linksim.Config{
		DropRate:         demoDrop,
		DuplicateRate:    demoDuplicate,
		CorruptRate:      demoCorrupt,
		Seed:             seed,
		ProtectBroadcast: true,
	})
	host, err := linksim.NewHostSession(d.host, d.opts)
	if err != nil {
		return nil, nil, err
	}
	device := linksim.NewDeviceSession(demoChannel, d.device, d.opts)

	err = link.Run(host, device, linksim.RunOptions{
		PacketLen: d.opts.PacketLen,
		MaxRounds: demoMaxRounds,
		Done:      func() bool { return host.Done() && device.Done() },
	})
	stats := link.GetStats()
	logrus.WithFields(logrus.Fields{
		"function":   "demo.session",
		"session":    name,
		"sent":       stats.Sent,
		"dropped":    stats.Dropped,
		"duplicated": stats.Duplicated,
		"corrupted":  stats.Corrupted,
	}).Info("Session finished")
	if err != nil {
		return nil, nil, fmt.Errorf("%s session: %w", name, err)
	}

	fmt.Fprintf(d.out, "%s session: channel %d, pairing %s, %d packets sent (%d dropped, %d duplicated, %d corrupted)\n",
		name, host.Channel().ID(), host.PairingState(), stats.Sent, stats.Dropped, stats.Duplicated, stats.Corrupted)
	return host, device, nil
}

// message sends demoMessage from host to device over a perfect link.
func (d *demo) message(host, device *channel.Channel) error {
	send := make([]byte, limits.EncryptedLen(len(demoMessage)))
	recv := make([]byte, len(send)+limits.ChecksumLen)
	err := host.MessageIn(send, channel.Message{Type: 1, Payload: []byte(demoMessage)})
	if err != nil {
		return err
	}

	packet := make([]byte, d.opts.PacketLen)
	for {
		n, err := host.PacketOut(packet)
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		if _, err := device.PacketIn(packet[:n], recv); err != nil {
			return err
		}
	}
	m, err := device.MessageOut(recv)
	if err != nil {
		return err
	}
	fmt.Fprintf(d.out, "device received message type %d: %q\n", m.Type, m.Payload)
	return nil
}

func init() {
	f := demoCmd.Flags()
	f.Float64Var(&demoDrop, "drop", 0.1, "probability of dropping a packet")
	f.Float64Var(&demoDuplicate, "duplicate", 0.05, "probability of duplicating a packet")
	f.Float64Var(&demoCorrupt, "corrupt", 0.05, "probability of flipping a bit in a packet")
	f.Uint64Var(&demoSeed, "seed", 1, "link impairment seed")
	f.Uint16Var(&demoChannel, "channel", 0x1234, "channel id the device allocates")
	f.BoolVar(&demoLocked, "locked", false, "start the device locked")
	f.BoolVar(&demoUnlock, "unlock", false, "ask a locked device to unlock")
	f.BoolVar(&demoPersist, "persist", false, "save the issued credential to the configured credential store")
	f.StringVar(&demoMessage, "message", "hello over THP", "application message sent after pairing")
	f.IntVar(&demoMaxRounds, "max-rounds", 5000, "give up after this many link rounds")
	rootCmd.AddCommand(demoCmd)
}
