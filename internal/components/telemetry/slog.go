package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// SlogAPI implements API using the log/slog package.
type SlogAPI struct{}

func (SlogAPI) formatParams(out *[]any, params []any) {
	for i, p := range params {
		*out = append(
			*out,
			fmt.Sprintf("params.%d", i),
			p,
		)
	}
}

func (s SlogAPI) ReportBroken(id string, params ...any) {
	remainingPairs := []any{"id", id}
	s.formatParams(&remainingPairs, params)
	slog.Error("broken component", remainingPairs...)
}

func (s SlogAPI) ReportWarning(id string, params ...any) {
	remainingPairs := []any{"id", id}
	s.formatParams(&remainingPairs, params)
	slog.Warn("warning", remainingPairs...)
}

func (s SlogAPI) ReportInfo(message string, params ...any) {
	remainingPairs := []any{}
	s.formatParams(&remainingPairs, params)
	slog.Info(message, remainingPairs...)
}

func (s SlogAPI) ReportDebug(message string, params ...any) {
	remainingPairs := []any{}
	s.formatParams(&remainingPairs, params)
	slog.Debug(message, remainingPairs...)
}

func (s SlogAPI) ReportCount(id string, count int64) {
	slog.Info("count", "id", id, "n", count)
}

// SlogOptions configures the process-wide slog handler.
type SlogOptions struct {
	Debug bool
	JSON  bool
	// LogFile, if set, receives a copy of every log line.
	LogFile string
}

// InitSlog installs the default slog logger, it returns a function that closes the log file
// (if one was opened).
func InitSlog(opts SlogOptions) (func() error, error) {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	closer := func() error { return nil }
	if opts.LogFile != "" {
		err := os.MkdirAll(filepath.Dir(opts.LogFile), 0777)
		if err != nil {
			return closer, err
		}
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return closer, err
		}
		out = io.MultiWriter(os.Stderr, f)
		closer = f.Close
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(out, handlerOpts)
	if opts.JSON {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))

	return closer, nil
}
