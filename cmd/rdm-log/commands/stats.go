package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/rdm-protocol/rdm-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Devices           map[string]*DeviceStats
	Probes            map[log.DiscoveryOutcome]int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// DeviceStats holds statistics for traffic involving a single device.
type DeviceStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Nacks     int
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Devices:           make(map[string]*DeviceStats),
		Probes:            make(map[log.DiscoveryOutcome]int),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByLayer[event.Layer]++
		stats.EventsByCategory[event.Category]++
		stats.EventsByDirection[event.Direction]++

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		if event.DeviceUID != "" {
			dev, ok := stats.Devices[event.DeviceUID]
			if !ok {
				dev = &DeviceStats{
					FirstSeen: event.Timestamp,
					LastSeen:  event.Timestamp,
				}
				stats.Devices[event.DeviceUID] = dev
			}
			dev.Events++
			if event.Timestamp.After(dev.LastSeen) {
				dev.LastSeen = event.Timestamp
			}
			if event.Message != nil && event.Message.NackReason != nil {
				dev.Nacks++
			}
		}

		if event.Discovery != nil {
			stats.Probes[event.Discovery.Outcome]++
		}

		if event.Error != nil {
			stats.Errors++
		}
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== RDM Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerLine, log.LayerFrame, log.LayerEngine} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryDiscovery, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Probes) > 0 {
		fmt.Fprintln(w, "Discovery Probes:")
		for _, outcome := range []log.DiscoveryOutcome{log.DiscoverySilent, log.DiscoveryFound, log.DiscoveryCollision} {
			if count := stats.Probes[outcome]; count > 0 {
				fmt.Fprintf(w, "  %-12s %d\n", outcome.String()+":", count)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Devices: %d\n", len(stats.Devices))
	if len(stats.Devices) > 0 {
		type devInfo struct {
			uid   string
			stats *DeviceStats
		}
		devs := make([]devInfo, 0, len(stats.Devices))
		for u, ds := range stats.Devices {
			devs = append(devs, devInfo{u, ds})
		}
		sort.Slice(devs, func(i, j int) bool {
			return devs[i].uid < devs[j].uid
		})

		fmt.Fprintln(w, "")
		for _, d := range devs {
			duration := d.stats.LastSeen.Sub(d.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", d.uid, d.stats.Events, duration)
			if d.stats.Nacks > 0 {
				fmt.Fprintf(w, "                  NACKs: %d\n", d.stats.Nacks)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
