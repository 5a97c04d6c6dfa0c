// Command taskboot-log is a tool for viewing and analyzing join trace
// files.
//
// Trace files are written by taskboot when a trace path is configured
// (log.trace or the -trace flag).
//
// Usage:
//
//	taskboot-log <command> [flags] <file.jlog>
//
// Commands:
//
//	view     View trace file in human-readable format
//	export   Export trace file to JSONL or CSV format
//	filter   Filter trace file and write to new file
//	stats    Show statistics about the trace file
//
// Examples:
//
//	# View all events
//	taskboot-log view join.jlog
//
//	# View only disconnects
//	taskboot-log view -kind disconnected join.jlog
//
//	# Export one network's attempts to CSV
//	taskboot-log export -format csv -ssid home join.jlog
//
//	# Keep a single attempt
//	taskboot-log filter -attempt 3f2a... -o attempt.jlog join.jlog
//
//	# Show statistics
//	taskboot-log stats join.jlog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mcu-template/taskboot/cmd/taskboot-log/commands"
)

const usage = `taskboot-log - Join Trace Analyzer

Usage:
  taskboot-log <command> [flags] <file.jlog>

Commands:
  view     View trace file in human-readable format
  export   Export trace file to JSONL or CSV format
  filter   Filter trace file and write to new file
  stats    Show statistics about the trace file

Use "taskboot-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func newFlagSet(name, synopsis string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "taskboot-log %s - %s\n\nUsage:\n  taskboot-log %s [flags] <file.jlog>\n\nFlags:\n", name, synopsis, name)
		fs.PrintDefaults()
	}
	return fs
}

func addFilterFlags(fs *flag.FlagSet, opts *commands.FilterOptions) {
	fs.StringVar(&opts.AttemptID, "attempt", "", "Filter by attempt ID")
	fs.StringVar(&opts.Kind, "kind", "", "Filter by event kind (e.g. disconnected, outcome, late-event)")
	fs.StringVar(&opts.SSID, "ssid", "", "Filter by network")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
}

// parse parses args and returns the trace path.
func parse(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: trace file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runView(args []string) {
	var opts commands.FilterOptions
	fs := newFlagSet("view", "View trace file in human-readable format")
	addFilterFlags(fs, &opts)
	path := parse(fs, args)

	filter, err := opts.Build()
	if err != nil {
		fail(err)
	}
	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	var opts commands.FilterOptions
	fs := newFlagSet("export", "Export trace file to JSONL or CSV format")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	addFilterFlags(fs, &opts)
	path := parse(fs, args)

	filter, err := opts.Build()
	if err != nil {
		fail(err)
	}
	if err := commands.RunExport(path, *format, *output, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	var opts commands.FilterOptions
	fs := newFlagSet("filter", "Filter trace file and write to new file")
	output := fs.String("o", "", "Output file (required)")
	addFilterFlags(fs, &opts)
	path := parse(fs, args)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	filter, err := opts.Build()
	if err != nil {
		fail(err)
	}
	n, err := commands.RunFilter(path, *output, filter)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Wrote %d events to %s\n", n, *output)
}

func runStats(args []string) {
	fs := newFlagSet("stats", "Show statistics about the trace file")
	path := parse(fs, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
