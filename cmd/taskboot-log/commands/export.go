package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mcu-template/taskboot/pkg/log"
)

// jsonEvent is the export shape of a trace event.
type jsonEvent struct {
	Timestamp  string `json:"timestamp"`
	AttemptID  string `json:"attempt_id"`
	Kind       string `json:"kind"`
	SSID       string `json:"ssid,omitempty"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
	Outcome    string `json:"outcome,omitempty"`
	Address    string `json:"address,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

const timeLayout = "2006-01-02T15:04:05.000000Z"

// RunExport exports matching events as jsonl or csv to output, or to w
// when output is empty.
func RunExport(path, format, output string, filter log.Filter, w io.Writer) error {
	if format != "jsonl" && format != "csv" {
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if format == "csv" {
		return exportCSV(reader, w)
	}
	return exportJSONL(reader, w)
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	return forEach(reader, func(event log.Event) error {
		if err := encoder.Encode(jsonEvent{
			Timestamp:  event.Timestamp.UTC().Format(timeLayout),
			AttemptID:  event.AttemptID,
			Kind:       event.Kind.String(),
			SSID:       event.SSID,
			RetryCount: event.RetryCount,
			MaxRetries: event.MaxRetries,
			Outcome:    event.Outcome,
			Address:    event.Address,
			Reason:     event.Reason,
		}); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		return nil
	})
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "attempt_id", "kind", "ssid", "retry_count", "max_retries", "outcome", "address", "reason"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	return forEach(reader, func(event log.Event) error {
		row := []string{
			event.Timestamp.UTC().Format(timeLayout),
			event.AttemptID,
			event.Kind.String(),
			event.SSID,
			strconv.Itoa(event.RetryCount),
			strconv.Itoa(event.MaxRetries),
			event.Outcome,
			event.Address,
			event.Reason,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		return nil
	})
}
