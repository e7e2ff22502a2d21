package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/google/gopacket"
	"github.com/spf13/cobra"

	"github.com/opd-ai/thp/limits"
	"github.com/opd-ai/thp/transport"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [hex-packet...]",
	Short: "Dissect hex encoded THP packets",
	Long: `Decode prints the header of each packet and, for packets that carry a
whole message, whether the checksum matches. Without arguments packets are
read from standard input, one per line.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				if line := strings.TrimSpace(scanner.Text()); line != "" {
					args = append(args, line)
				}
			}
			if err := scanner.Err(); err != nil {
				return err
			}
		}
		for i, arg := range args {
			if err := decodePacket(cmd.OutOrStdout(), i, arg); err != nil {
				return err
			}
		}
		return nil
	},
}

func decodePacket(w io.Writer, index int, text string) error {
	data, err := hex.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return fmt.Errorf("packet %d: %w", index, err)
	}
	if err := limits.ValidateMessageSize(data, limits.MaxPacketLen); err != nil {
		return fmt.Errorf("packet %d: %w", index, err)
	}

	packet := gopacket.NewPacket(data, transport.LayerTypeTHP, gopacket.Default)
	if el := packet.ErrorLayer(); el != nil {
		fmt.Fprintf(w, "packet %d: undecodable: %v\n", index, el.Error())
		return nil
	}
	l, ok := packet.Layer(transport.LayerTypeTHP).(*transport.Layer)
	if !ok {
		fmt.Fprintf(w, "packet %d: no THP layer\n", index)
		return nil
	}

	fmt.Fprintf(w, "packet %d: %s channel=%d", index, l.Kind, l.ChannelID)
	switch {
	case l.Kind == transport.KindContinuation:
		fmt.Fprintf(w, " data=%d bytes\n", len(l.LayerPayload()))
	case l.Truncated:
		fmt.Fprintf(w, " bit=%d length=%d first fragment\n", l.Bit, l.Length)
	default:
		fmt.Fprintf(w, " bit=%d length=%d payload=%x crc=%08x valid=%t\n",
			l.Bit, l.Length, l.LayerPayload(), l.Checksum, l.ChecksumValid)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}
