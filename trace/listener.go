package trace

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Karthik-Ragunath/lock-in/model"
)

const (
	fileWaitInterval = 500 * time.Millisecond
	tailPollInterval = 100 * time.Millisecond
)

// Listener streams reasoning steps from a continuously appended trace
// source: either a file that is tailed for new lines, or an arbitrary
// reader (stdin, a pipe). A stopped listener cannot be resumed; create a
// new one to listen again, which also resets step numbering.
type Listener struct {
	path       string
	reader     io.Reader
	normalizer *Normalizer
	running    atomic.Bool
	logger     *slog.Logger
}

// NewFileListener creates a listener that tails the given trace file,
// waiting for it to appear if necessary.
func NewFileListener(path string, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		path:       path,
		normalizer: NewNormalizer(logger),
		logger:     logger,
	}
}

// NewReaderListener creates a listener that consumes lines from r until
// EOF or stop.
func NewReaderListener(r io.Reader, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		reader:     r,
		normalizer: NewNormalizer(logger),
		logger:     logger,
	}
}

// Listen starts streaming steps on the returned channel. The channel is
// closed when the source is exhausted, the context is canceled, or Stop is
// called. Cancellation is polled: an in-flight wait observes it within one
// poll interval rather than being interrupted.
func (l *Listener) Listen(ctx context.Context) <-chan model.ReasoningStep {
	steps := make(chan model.ReasoningStep)
	l.running.Store(true)

	go func() {
		defer close(steps)
		defer l.running.Store(false)

		if l.reader != nil {
			l.streamReader(ctx, steps)
			return
		}
		l.tailFile(ctx, steps)
	}()

	return steps
}

// Stop requests the listener to stop. The active Listen loop observes the
// flag on its next wake.
func (l *Listener) Stop() {
	l.running.Store(false)
	l.logger.Info("trace listener stop requested")
}

// IsRunning reports whether the listener is actively streaming.
func (l *Listener) IsRunning() bool {
	return l.running.Load()
}

// StepCount reports how many steps have been emitted so far.
func (l *Listener) StepCount() int {
	return l.normalizer.StepCount()
}

func (l *Listener) streamReader(ctx context.Context, steps chan<- model.ReasoningStep) {
	scanner := bufio.NewScanner(l.reader)
	for scanner.Scan() {
		if !l.alive(ctx) {
			return
		}
		l.emit(ctx, steps, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		l.logger.Error("trace reader failed", "error", err)
	}
}

func (l *Listener) tailFile(ctx context.Context, steps chan<- model.ReasoningStep) {
	for {
		if !l.alive(ctx) {
			return
		}
		if _, err := os.Stat(l.path); err == nil {
			break
		}
		l.logger.Warn("trace file not found, waiting", "path", l.path)
		sleep(ctx, fileWaitInterval)
	}

	f, err := os.Open(l.path)
	if err != nil {
		l.logger.Error("cannot open trace file", "path", l.path, "error", err)
		return
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	for {
		if !l.alive(ctx) {
			return
		}
		line, err := reader.ReadString('\n')
		if line != "" {
			l.emit(ctx, steps, strings.TrimRight(line, "\n"))
		}
		if err == io.EOF {
			sleep(ctx, tailPollInterval)
			continue
		}
		if err != nil {
			l.logger.Error("trace file read failed", "path", l.path, "error", err)
			return
		}
	}
}

func (l *Listener) emit(ctx context.Context, steps chan<- model.ReasoningStep, line string) {
	step, ok := l.normalizer.ParseLine(line)
	if !ok {
		return
	}
	select {
	case steps <- step:
	case <-ctx.Done():
	}
}

func (l *Listener) alive(ctx context.Context) bool {
	if !l.running.Load() {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	default:
		return true
	}
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
