package commands

import (
	"fmt"

	"github.com/mcu-template/taskboot/pkg/log"
)

// RunFilter copies matching events into a new trace file.
func RunFilter(path, output string, filter log.Filter) (int, error) {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	writer, err := log.NewFileLogger(output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}

	n := 0
	err = forEach(reader, func(event log.Event) error {
		writer.Log(event)
		n++
		return nil
	})
	if cerr := writer.Close(); err == nil {
		err = cerr
	}
	return n, err
}
