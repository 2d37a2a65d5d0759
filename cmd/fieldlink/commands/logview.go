package commands

import (
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	plog "github.com/fieldlink/fieldlink-go/pkg/log"
)

const timeLayout = "2006-01-02T15:04:05.000000Z"

// ParseLayerFlag parses a layer flag value.
func ParseLayerFlag(s string) (plog.Layer, error) {
	l, ok := plog.ParseLayer(s)
	if !ok {
		return 0, fmt.Errorf("invalid layer: %s (must be transport, message, bootloader, or discovery)", s)
	}
	return l, nil
}

// ParseDirectionFlag parses a direction flag value.
func ParseDirectionFlag(s string) (plog.Direction, error) {
	d, ok := plog.ParseDirection(s)
	if !ok {
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
	return d, nil
}

// ParseCategoryFlag parses a category flag value.
func ParseCategoryFlag(s string) (plog.Category, error) {
	c, ok := plog.ParseCategory(s)
	if !ok {
		return 0, fmt.Errorf("invalid category: %s (must be message, command, state, or error)", s)
	}
	return c, nil
}

// eachEvent calls fn for every event in path that passes filter.
func eachEvent(path string, filter plog.Filter, fn func(plog.Event) error) error {
	reader, err := plog.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

// RunView prints the matching events of a capture file.
func RunView(path string, filter plog.Filter, w io.Writer) error {
	return eachEvent(path, filter, func(e plog.Event) error {
		formatEvent(w, e)
		return nil
	})
}

func eventType(e plog.Event) string {
	switch {
	case e.Frame != nil:
		return "Frame"
	case e.Message != nil:
		return e.Message.Kind
	case e.StateChange != nil:
		return "State"
	case e.Bootloader != nil:
		return e.Bootloader.CommandName
	case e.Discovery != nil:
		return "Device"
	case e.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// formatEvent writes one event as a header line plus details.
func formatEvent(w io.Writer, e plog.Event) {
	ts := e.Timestamp.UTC().Format(timeLayout)
	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s\n", ts, shortenConnID(e.ConnectionID), e.Direction, e.Layer, eventType(e))

	if e.Transport != "" || e.RemoteAddr != "" {
		fmt.Fprintf(w, "  Peer: %s %s\n", e.Transport, e.RemoteAddr)
	}
	if e.SerialNo != "" {
		fmt.Fprintf(w, "  Serial: %s\n", e.SerialNo)
	}

	switch {
	case e.Frame != nil:
		fmt.Fprintf(w, "  Size: %d bytes\n", e.Frame.Size)
		if len(e.Frame.Data) > 0 {
			fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(e.Frame.Data))
			if e.Frame.Truncated {
				fmt.Fprint(w, " (truncated)")
			}
			fmt.Fprintln(w)
		}
	case e.Message != nil:
		fmt.Fprintf(w, "  Size: %d bytes\n", e.Message.Size)
		if e.Message.Text != "" {
			fmt.Fprintf(w, "  Text: %q\n", e.Message.Text)
		}
		if len(e.Message.Fields) > 0 {
			if b, err := json.Marshal(e.Message.Fields); err == nil {
				fmt.Fprintf(w, "  Fields: %s\n", b)
			}
		}
	case e.StateChange != nil:
		sc := e.StateChange
		fmt.Fprintf(w, "  Entity: %s\n", sc.Entity)
		if sc.OldState != "" {
			fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
		} else {
			fmt.Fprintf(w, "  -> %s\n", sc.NewState)
		}
		if sc.Reason != "" {
			fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
		}
	case e.Bootloader != nil:
		b := e.Bootloader
		fmt.Fprintf(w, "  Command: 0x%02X %s\n", b.Command, b.CommandName)
		if b.Total > 0 {
			fmt.Fprintf(w, "  Record: %d/%d\n", b.Record+1, b.Total)
		}
		if b.Result != "" {
			fmt.Fprintf(w, "  Result: %s\n", b.Result)
		}
	case e.Discovery != nil:
		d := e.Discovery
		fmt.Fprintf(w, "  Source: %s\n", d.Source)
		fmt.Fprintf(w, "  Device: %s at %s", d.Name, d.Address)
		if d.FirmwareVersion != "" {
			fmt.Fprintf(w, " fw %s", d.FirmwareVersion)
		}
		fmt.Fprintln(w)
	case e.Error != nil:
		fmt.Fprintf(w, "  Layer: %s\n", e.Error.Layer)
		fmt.Fprintf(w, "  Message: %s\n", e.Error.Message)
		if e.Error.Context != "" {
			fmt.Fprintf(w, "  Context: %s\n", e.Error.Context)
		}
	}
	fmt.Fprintln(w)
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}

// Stats holds aggregate statistics about a capture file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[plog.Layer]int
	EventsByCategory  map[plog.Category]int
	EventsByDirection map[plog.Direction]int
	Connections       map[string]*ConnectionStats
	Devices           map[string]int
	Errors            int
	Start, End        time.Time
}

// ConnectionStats holds statistics for a single link.
type ConnectionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Bytes     int
	SerialNo  string
	Transport string
	Remote    string
}

// CollectStats reads path and aggregates its events.
func CollectStats(path string) (*Stats, error) {
	stats := &Stats{
		EventsByLayer:     make(map[plog.Layer]int),
		EventsByCategory:  make(map[plog.Category]int),
		EventsByDirection: make(map[plog.Direction]int),
		Connections:       make(map[string]*ConnectionStats),
		Devices:           make(map[string]int),
	}

	err := eachEvent(path, plog.Filter{}, func(e plog.Event) error {
		stats.TotalEvents++
		stats.EventsByLayer[e.Layer]++
		stats.EventsByCategory[e.Category]++
		stats.EventsByDirection[e.Direction]++

		if stats.Start.IsZero() || e.Timestamp.Before(stats.Start) {
			stats.Start = e.Timestamp
		}
		if e.Timestamp.After(stats.End) {
			stats.End = e.Timestamp
		}
		if e.Error != nil {
			stats.Errors++
		}
		if e.Discovery != nil && e.SerialNo != "" {
			stats.Devices[e.SerialNo]++
		}

		if e.ConnectionID == "" {
			return nil
		}
		conn, ok := stats.Connections[e.ConnectionID]
		if !ok {
			conn = &ConnectionStats{FirstSeen: e.Timestamp, LastSeen: e.Timestamp}
			stats.Connections[e.ConnectionID] = conn
		}
		conn.Events++
		if e.Timestamp.After(conn.LastSeen) {
			conn.LastSeen = e.Timestamp
		}
		if e.Frame != nil {
			conn.Bytes += e.Frame.Size
		}
		if conn.SerialNo == "" {
			conn.SerialNo = e.SerialNo
		}
		if conn.Transport == "" {
			conn.Transport, conn.Remote = e.Transport, e.RemoteAddr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// RunStats prints statistics about a capture file.
func RunStats(path string, w io.Writer) error {
	stats, err := CollectStats(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== fieldlink Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n", stats.Start.Format(time.RFC3339), stats.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.End.Sub(stats.Start).Round(time.Second))
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Total Events: %d\n\n", stats.TotalEvents)

	fmt.Fprintln(w, "Events by Layer:")
	for _, l := range []plog.Layer{plog.LayerTransport, plog.LayerMessage, plog.LayerBootloader, plog.LayerDiscovery} {
		if n := stats.EventsByLayer[l]; n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", l.String()+":", n)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, c := range []plog.Category{plog.CategoryMessage, plog.CategoryCommand, plog.CategoryState, plog.CategoryError} {
		if n := stats.EventsByCategory[c]; n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", c.String()+":", n)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, d := range []plog.Direction{plog.DirectionIn, plog.DirectionOut} {
		if n := stats.EventsByDirection[d]; n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", d.String()+":", n)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	ids := make([]string, 0, len(stats.Connections))
	for id := range stats.Connections {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return stats.Connections[ids[i]].FirstSeen.Before(stats.Connections[ids[j]].FirstSeen)
	})
	for _, id := range ids {
		c := stats.Connections[id]
		fmt.Fprintf(w, "  [%s] %d events, %d bytes, duration %s\n",
			shortenConnID(id), c.Events, c.Bytes, c.LastSeen.Sub(c.FirstSeen).Round(time.Millisecond))
		if c.Transport != "" {
			fmt.Fprintf(w, "           Peer: %s %s\n", c.Transport, c.Remote)
		}
		if c.SerialNo != "" {
			fmt.Fprintf(w, "           Serial: %s\n", c.SerialNo)
		}
	}

	if len(stats.Devices) > 0 {
		fmt.Fprintf(w, "\nDiscovered Devices: %d\n", len(stats.Devices))
	}
	if stats.Errors > 0 {
		fmt.Fprintf(w, "\nErrors: %d\n", stats.Errors)
	}
}

// RunExport writes the events of path as jsonl or csv to output, or to
// stdout when output is empty.
func RunExport(path, format, output string, filter plog.Filter) error {
	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return Export(path, format, w, filter)
}

// Export writes the events of path to w.
func Export(path, format string, w io.Writer, filter plog.Filter) error {
	switch format {
	case "jsonl":
		enc := json.NewEncoder(w)
		return eachEvent(path, filter, func(e plog.Event) error {
			if err := enc.Encode(e); err != nil {
				return fmt.Errorf("failed to encode event: %w", err)
			}
			return nil
		})
	case "csv":
		cw := csv.NewWriter(w)
		header := []string{"timestamp", "connection_id", "direction", "layer", "category", "transport", "remote", "serial", "type", "size"}
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		err := eachEvent(path, filter, func(e plog.Event) error {
			size := ""
			switch {
			case e.Frame != nil:
				size = strconv.Itoa(e.Frame.Size)
			case e.Message != nil:
				size = strconv.Itoa(e.Message.Size)
			}
			return cw.Write([]string{
				e.Timestamp.UTC().Format(timeLayout),
				e.ConnectionID,
				e.Direction.String(),
				e.Layer.String(),
				e.Category.String(),
				e.Transport,
				e.RemoteAddr,
				e.SerialNo,
				strings.ToLower(eventType(e)),
				size,
			})
		})
		cw.Flush()
		if err != nil {
			return err
		}
		return cw.Error()
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}
