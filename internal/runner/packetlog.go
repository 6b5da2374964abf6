package runner

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/speedguard/sgvpn/internal/model"
	"github.com/speedguard/sgvpn/internal/workers"
)

// PacketLog is a diagnostic runner that logs a one line summary of each
// packet read from the interface instead of forwarding it.
type PacketLog struct {
	// OnExit may be nil.
	OnExit ExitFunc

	logger  model.Logger
	workers *workers.Manager
	mtu     int
}

var _ model.Runner = &PacketLog{}

// NewPacketLog creates a [PacketLog] reading packets of up to mtu bytes.
func NewPacketLog(logger model.Logger, w *workers.Manager, mtu int) *PacketLog {
	if mtu <= 0 {
		mtu = model.DefaultMTU
	}
	return &PacketLog{logger: logger, workers: w, mtu: mtu}
}

// Start implements [model.Runner].
func (p *PacketLog) Start(handle model.TransportHandle, rawConfig string) {
	file, err := fileOf(handle)
	if err != nil {
		p.logger.Errorf("packetlog: %s: %s", handle.Name(), err)
		closeAndExit(p.logger, handle, p.OnExit, err)
		return
	}
	reader, err := pollable(file)
	if err != nil {
		p.logger.Errorf("packetlog: %s: %s", handle.Name(), err)
		closeAndExit(p.logger, handle, p.OnExit, err)
		return
	}
	readDone := make(chan error, 1)
	go func() {
		readDone <- p.readLoop(handle.Name(), reader)
	}()
	p.workers.StartWorker("packetlog "+handle.Name(), func() {
		var err error
		select {
		case err = <-readDone:
		case <-p.workers.ShouldShutdown():
			reader.Close()
			<-readDone
		}
		reader.Close()
		closeAndExit(p.logger, handle, p.OnExit, err)
	})
}

func (p *PacketLog) readLoop(name string, file *os.File) error {
	buf := make([]byte, p.mtu+64)
	for {
		n, err := file.Read(buf)
		if err != nil {
			return fmt.Errorf("packetlog: %s: read: %w", name, err)
		}
		p.logger.Infof("packetlog: %s: %s", name, describe(buf[:n]))
	}
}

// describe summarizes an IP packet.
func describe(data []byte) string {
	if len(data) == 0 {
		return "empty packet"
	}
	var first gopacket.LayerType
	switch data[0] >> 4 {
	case 4:
		first = layers.LayerTypeIPv4
	case 6:
		first = layers.LayerTypeIPv6
	default:
		return fmt.Sprintf("non-ip packet, %d bytes", len(data))
	}

	pkt := gopacket.NewPacket(data, first, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	var src, dst, proto string
	switch ip := pkt.NetworkLayer().(type) {
	case *layers.IPv4:
		src, dst, proto = ip.SrcIP.String(), ip.DstIP.String(), ip.Protocol.String()
	case *layers.IPv6:
		src, dst, proto = ip.SrcIP.String(), ip.DstIP.String(), ip.NextHeader.String()
	default:
		return fmt.Sprintf("malformed %s packet, %d bytes", first, len(data))
	}

	switch t := pkt.TransportLayer().(type) {
	case *layers.TCP:
		src = net.JoinHostPort(src, strconv.Itoa(int(t.SrcPort)))
		dst = net.JoinHostPort(dst, strconv.Itoa(int(t.DstPort)))
	case *layers.UDP:
		src = net.JoinHostPort(src, strconv.Itoa(int(t.SrcPort)))
		dst = net.JoinHostPort(dst, strconv.Itoa(int(t.DstPort)))
	}
	return fmt.Sprintf("%s > %s %s %d bytes", src, dst, proto, len(data))
}
