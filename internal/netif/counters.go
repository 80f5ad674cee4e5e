package netif

import (
	"context"
	"fmt"

	psnet "github.com/shirou/gopsutil/v3/net"

	"wifiscout/internal/domain"
)

// Counters is the traffic seen on one interface since boot
type Counters struct {
	Interface   string `json:"interface"`
	BytesSent   uint64 `json:"bytes_sent"`
	BytesRecv   uint64 `json:"bytes_recv"`
	PacketsSent uint64 `json:"packets_sent"`
	PacketsRecv uint64 `json:"packets_recv"`
	Errin       uint64 `json:"errors_in"`
	Errout      uint64 `json:"errors_out"`
}

// CountersOf reads the kernel counters for iface
func CountersOf(ctx context.Context, iface string) (*Counters, error) {
	stats, err := psnet.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("read interface counters: %w", err)
	}
	return pickCounters(stats, iface)
}

func pickCounters(stats []psnet.IOCountersStat, iface string) (*Counters, error) {
	for _, s := range stats {
		if s.Name != iface {
			continue
		}
		return &Counters{
			Interface:   s.Name,
			BytesSent:   s.BytesSent,
			BytesRecv:   s.BytesRecv,
			PacketsSent: s.PacketsSent,
			PacketsRecv: s.PacketsRecv,
			Errin:       s.Errin,
			Errout:      s.Errout,
		}, nil
	}
	return nil, domain.ErrAdapterAbsent
}
