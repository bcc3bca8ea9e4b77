// Command easycms-log views and summarizes hub protocol event files.
//
// Event files are created by running easycms with the -event-log
// flag (or an event_file logging config entry).
//
// Usage:
//
//	easycms-log <command> [flags] <file.cborlog>
//
// Commands:
//
//	view    View events in human-readable format
//	stats   Show per-kind and per-session statistics
//
// Examples:
//
//	# View all events
//	easycms-log view events.cborlog
//
//	# View only wire-layer events for one device
//	easycms-log view -layer wire -serial CAM001 events.cborlog
//
//	# Summarize a capture
//	easycms-log stats events.cborlog
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/easydarwin/easycms-go/pkg/log"
)

const usage = `easycms-log - Hub protocol event analyzer

Usage:
  easycms-log <command> [flags] <file.cborlog>

Commands:
  view    View events in human-readable format
  stats   Show per-kind and per-session statistics

Use "easycms-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	switch cmd := os.Args[1]; cmd {
	case "view":
		runView(os.Args[2:])
	case "stats":
		runStats(os.Args[2:])
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	layer := fs.String("layer", "", "Filter by layer (transport, wire, service)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	serial := fs.String("serial", "", "Filter by device serial")
	session := fs.String("session", "", "Filter by session ID prefix")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	events := load(fs)

	for _, e := range events {
		if *layer != "" && !strings.EqualFold(e.Layer.String(), *layer) {
			continue
		}
		if *direction != "" && !strings.EqualFold(e.Direction.String(), *direction) {
			continue
		}
		if *serial != "" && e.Serial != *serial {
			continue
		}
		if *session != "" && !strings.HasPrefix(e.SessionID, *session) {
			continue
		}
		fmt.Println(format(e))
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	events := load(fs)

	if len(events) == 0 {
		fmt.Println("no events")
		return
	}

	kinds := map[string]int{}
	sessions := map[string]int{}
	errors := 0
	for _, e := range events {
		if e.Message != nil {
			kinds[e.Message.Kind.String()]++
		}
		sessions[e.SessionID]++
		if e.Category == log.CategoryError {
			errors++
		}
	}

	first, last := events[0].Timestamp, events[len(events)-1].Timestamp
	fmt.Printf("Events:   %d\n", len(events))
	fmt.Printf("Sessions: %d\n", len(sessions))
	fmt.Printf("Errors:   %d\n", errors)
	fmt.Printf("Span:     %s .. %s (%s)\n",
		first.Format("15:04:05.000"), last.Format("15:04:05.000"), last.Sub(first))

	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nMessages by kind:")
	for _, name := range names {
		fmt.Printf("  %-28s %d\n", name, kinds[name])
	}
}

func load(fs *flag.FlagSet) []log.Event {
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: event file path required")
		os.Exit(1)
	}
	events, err := log.ReadEvents(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", fs.Arg(0), err)
		os.Exit(1)
	}
	return events
}

func format(e log.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-3s %-9s %-7s",
		e.Timestamp.Format("15:04:05.000"),
		e.Direction.String(),
		e.Layer.String(),
		e.Category.String())

	if len(e.SessionID) >= 8 {
		fmt.Fprintf(&b, " [%s]", e.SessionID[:8])
	} else if e.SessionID != "" {
		fmt.Fprintf(&b, " [%s]", e.SessionID)
	}
	if e.Serial != "" {
		fmt.Fprintf(&b, " %s", e.Serial)
	}

	switch {
	case e.Frame != nil:
		fmt.Fprintf(&b, " frame %dB", e.Frame.Size)
		if e.Frame.Truncated {
			b.WriteString(" (truncated)")
		}
	case e.Message != nil:
		fmt.Fprintf(&b, " %s cseq=%s", e.Message.Kind.String(), e.Message.CSeq)
		if e.Message.ErrorNum != 0 {
			fmt.Fprintf(&b, " num=%d", e.Message.ErrorNum)
		}
		if e.Message.ProcessingTime != nil {
			fmt.Fprintf(&b, " took=%s", *e.Message.ProcessingTime)
		}
	case e.StateChange != nil:
		fmt.Fprintf(&b, " %s %s -> %s",
			e.StateChange.Entity.String(), e.StateChange.OldState, e.StateChange.NewState)
		if e.StateChange.Reason != "" {
			fmt.Fprintf(&b, " (%s)", e.StateChange.Reason)
		}
	case e.Error != nil:
		fmt.Fprintf(&b, " error: %s", e.Error.Message)
	}

	return b.String()
}
