// Package commands implements the taskboot-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/mcu-template/taskboot/pkg/log"
)

// FilterOptions are the filter flags shared by view, export and filter.
type FilterOptions struct {
	AttemptID string
	Kind      string
	SSID      string
	TimeStart string
	TimeEnd   string
}

// Build converts the flag values into a log.Filter.
func (o FilterOptions) Build() (log.Filter, error) {
	f := log.Filter{
		AttemptID: o.AttemptID,
		SSID:      o.SSID,
	}
	if o.Kind != "" {
		k, err := log.ParseKind(o.Kind)
		if err != nil {
			return log.Filter{}, err
		}
		f.Kind = &k
	}
	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-start: %w", err)
		}
		f.TimeStart = &t
	}
	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-end: %w", err)
		}
		f.TimeEnd = &t
	}
	return f, nil
}

// RunView prints matching events in human-readable form.
func RunView(path string, filter log.Filter, w io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	return forEach(reader, func(event log.Event) error {
		formatEvent(w, event)
		return nil
	})
}

// forEach calls fn for each event until the end of the file.
func forEach(reader *log.Reader, fn func(log.Event) error) error {
	for {
		event, err := reader.Next()
		if err == io.EOF {
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

// formatEvent writes one line per event:
//
//	timestamp [attempt] KIND ssid retries=n/max details
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(w, "%s [%s] %-17s %s retries=%d/%d",
		ts, shortenID(event.AttemptID), event.Kind, event.SSID, event.RetryCount, event.MaxRetries)
	if event.Reason != "" {
		fmt.Fprintf(w, " reason=%s", event.Reason)
	}
	if event.Address != "" {
		fmt.Fprintf(w, " address=%s", event.Address)
	}
	if event.Outcome != "" {
		fmt.Fprintf(w, " outcome=%s", event.Outcome)
	}
	fmt.Fprintln(w)
}

// shortenID returns the first 8 characters of an attempt ID.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}
