package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Config contains recorder configuration
type Config struct {
	// Enabled writes events to Dir in addition to memory
	Enabled bool

	// Dir is the directory for trace files (default: ~/.hdlplay/traces)
	Dir string

	// MaxEvents bounds the in-memory history (default: 1000)
	MaxEvents int
}

// DefaultConfig returns the default recorder configuration
func DefaultConfig() Config {
	homeDir, _ := os.UserHomeDir()
	return Config{
		Dir:       filepath.Join(homeDir, ".hdlplay", "traces"),
		MaxEvents: 1000,
	}
}

// Recorder keeps trace events in memory and optionally appends them to
// one JSON-lines file per run.
type Recorder struct {
	mu     sync.Mutex
	config Config
	events []*Event
}

// NewRecorder creates a recorder
func NewRecorder(config Config) (*Recorder, error) {
	if config.MaxEvents <= 0 {
		config.MaxEvents = DefaultConfig().MaxEvents
	}
	if config.Enabled {
		if config.Dir == "" {
			config.Dir = DefaultConfig().Dir
		}
		if err := os.MkdirAll(config.Dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create trace directory: %w", err)
		}
	}
	return &Recorder{config: config}, nil
}

// Record stores event
func (r *Recorder) Record(event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
	if over := len(r.events) - r.config.MaxEvents; over > 0 {
		r.events = append([]*Event(nil), r.events[over:]...)
	}

	if !r.config.Enabled {
		return nil
	}

	line, err := event.MarshalLine()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}
	f, err := os.OpenFile(r.Path(event.RunID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write event: %w", err)
	}
	return f.Close()
}

// Path returns the trace file of run runID
func (r *Recorder) Path(runID string) string {
	return filepath.Join(r.config.Dir, fmt.Sprintf("trace_%s.jsonl", runID))
}

// Events returns the in-memory events of run runID, or all events when
// runID is empty
func (r *Recorder) Events(runID string) []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Event
	for _, e := range r.events {
		if runID == "" || e.RunID == runID {
			out = append(out, e)
		}
	}
	return out
}

// ReadFile loads the events of a trace file
func ReadFile(path string) ([]*Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []*Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("failed to parse trace line: %w", err)
		}
		events = append(events, &e)
	}
	return events, scanner.Err()
}
