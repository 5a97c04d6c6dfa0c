package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/mcu-template/taskboot/pkg/log"
)

// Stats holds aggregate statistics about a trace file.
type Stats struct {
	TotalEvents  int
	EventsByKind map[log.Kind]int
	Reasons      map[string]int
	Attempts     map[string]*AttemptStats
	Outcomes     map[string]int
	TimeRange    struct {
		Start time.Time
		End   time.Time
	}
}

// AttemptStats summarizes one join attempt.
type AttemptStats struct {
	SSID       string
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	Connects   int
	RetryCount int
	MaxRetries int
	Outcome    string
	Address    string
	LateEvents int
}

// Collect reads the trace file and aggregates it.
func Collect(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByKind: make(map[log.Kind]int),
		Reasons:      make(map[string]int),
		Attempts:     make(map[string]*AttemptStats),
		Outcomes:     make(map[string]int),
	}

	err = forEach(reader, func(event log.Event) error {
		stats.add(event)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByKind[event.Kind]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	a, ok := s.Attempts[event.AttemptID]
	if !ok {
		a = &AttemptStats{
			SSID:      event.SSID,
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
		}
		s.Attempts[event.AttemptID] = a
	}
	a.Events++
	if event.Timestamp.After(a.LastSeen) {
		a.LastSeen = event.Timestamp
	}
	a.MaxRetries = event.MaxRetries

	switch event.Kind {
	case log.KindConnectRequested:
		a.Connects++
	case log.KindDisconnected:
		if event.Reason != "" {
			s.Reasons[event.Reason]++
		}
	case log.KindLateEvent:
		a.LateEvents++
	case log.KindOutcome, log.KindSetupError:
		a.Outcome = event.Outcome
		a.RetryCount = event.RetryCount
		if event.Address != "" {
			a.Address = event.Address
		}
		s.Outcomes[event.Outcome]++
	}
}

// RunStats analyzes the trace file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := Collect(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Join Trace Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Millisecond))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Kind:")
	for k := log.KindAttemptStarted; k <= log.KindSetupError; k++ {
		if count := stats.EventsByKind[k]; count > 0 {
			fmt.Fprintf(w, "  %-19s %d\n", k.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Reasons) > 0 {
		fmt.Fprintln(w, "Disconnect Reasons:")
		for _, reason := range sortedKeys(stats.Reasons) {
			fmt.Fprintf(w, "  %-19s %d\n", reason+":", stats.Reasons[reason])
		}
		fmt.Fprintln(w)
	}

	if len(stats.Outcomes) > 0 {
		fmt.Fprintln(w, "Outcomes:")
		for _, outcome := range sortedKeys(stats.Outcomes) {
			fmt.Fprintf(w, "  %-19s %d\n", outcome+":", stats.Outcomes[outcome])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Attempts: %d\n", len(stats.Attempts))
	if len(stats.Attempts) == 0 {
		return
	}

	type attemptInfo struct {
		id    string
		stats *AttemptStats
	}
	attempts := make([]attemptInfo, 0, len(stats.Attempts))
	for id, a := range stats.Attempts {
		attempts = append(attempts, attemptInfo{id, a})
	}
	sort.Slice(attempts, func(i, j int) bool {
		return attempts[i].stats.FirstSeen.Before(attempts[j].stats.FirstSeen)
	})

	fmt.Fprintln(w)
	for _, a := range attempts {
		outcome := a.stats.Outcome
		if outcome == "" {
			outcome = "incomplete"
		}
		duration := a.stats.LastSeen.Sub(a.stats.FirstSeen).Round(time.Millisecond)
		fmt.Fprintf(w, "  [%s] %s %s, %d connects, retries %d/%d, duration %s\n",
			shortenID(a.id), a.stats.SSID, outcome, a.stats.Connects, a.stats.RetryCount, a.stats.MaxRetries, duration)
		if a.stats.Address != "" {
			fmt.Fprintf(w, "           Address: %s\n", a.stats.Address)
		}
		if a.stats.LateEvents > 0 {
			fmt.Fprintf(w, "           Late events: %d\n", a.stats.LateEvents)
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
