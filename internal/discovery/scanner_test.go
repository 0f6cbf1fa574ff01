// internal/discovery/scanner_test.go
package discovery

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"greymatter/internal/model"
	"greymatter/internal/registry"
	"greymatter/pkg/transport"
)

type stubLink struct {
	idn    string
	err    error
	mu     sync.Mutex
	closed bool
}

func (l *stubLink) SendCommand(cmd string) (string, error) {
	if cmd != IdentifyCommand {
		return "", nil
	}
	return l.idn, l.err
}

func (l *stubLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *stubLink) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func newTestScanner(patterns []string, globs map[string][]string, links map[string]*stubLink) *Scanner {
	s := NewScanner(Config{Patterns: patterns}, nil)
	s.SetGlob(func(pattern string) ([]string, error) {
		return append([]string(nil), globs[pattern]...), nil
	})
	s.SetOpener(func(ctx context.Context, address string, baudRate int, timeout time.Duration) (transport.Transport, error) {
		link, ok := links[address]
		if !ok {
			return nil, transport.NewCommunicationError("open "+address, errors.New("permission denied"))
		}
		return link, nil
	})
	return s
}

func TestScanner_Candidates(t *testing.T) {
	s := newTestScanner(
		[]string{"/dev/ttyACM*", "/dev/ttyUSB*", "/dev/tty*"},
		map[string][]string{
			"/dev/ttyACM*": {"/dev/ttyACM1", "/dev/ttyACM0"},
			"/dev/ttyUSB*": {"/dev/ttyUSB0"},
			"/dev/tty*":    {"/dev/ttyUSB0", "/dev/ttyACM0", "/dev/tty0"},
		},
		nil,
	)

	want := []string{"/dev/ttyACM0", "/dev/ttyACM1", "/dev/ttyUSB0", "/dev/tty0"}
	if got := s.Candidates(); !reflect.DeepEqual(got, want) {
		t.Errorf("Candidates() = %v, want %v", got, want)
	}
}

func TestScanner_NamesFollowScanOrder(t *testing.T) {
	silent := &stubLink{err: transport.ErrTimeout}
	empty := &stubLink{idn: ""}
	links := map[string]*stubLink{
		"/dev/ttyACM0": {idn: "GM-A"},
		"/dev/ttyACM1": silent,
		"/dev/ttyACM3": {idn: "GM-B"},
		"/dev/ttyACM4": empty,
		"/dev/ttyACM5": {idn: "GM-C"},
	}
	s := newTestScanner(
		[]string{"/dev/ttyACM*"},
		map[string][]string{"/dev/ttyACM*": {
			"/dev/ttyACM5", "/dev/ttyACM4", "/dev/ttyACM3", "/dev/ttyACM2", "/dev/ttyACM1", "/dev/ttyACM0",
		}},
		links,
	)

	devices := s.Scan(context.Background())

	var got []string
	for _, d := range devices {
		got = append(got, d.Name+"@"+d.Port+"="+d.IDN)
	}
	want := []string{
		"pico_0@/dev/ttyACM0=GM-A",
		"pico_1@/dev/ttyACM3=GM-B",
		"pico_2@/dev/ttyACM5=GM-C",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Scan() = %v, want %v", got, want)
	}

	if !silent.isClosed() || !empty.isClosed() {
		t.Error("rejected candidates must be closed")
	}
	if links["/dev/ttyACM0"].isClosed() {
		t.Error("registered link must stay open")
	}
}

func TestScanner_Cancelled(t *testing.T) {
	s := newTestScanner(
		[]string{"/dev/ttyACM*"},
		map[string][]string{"/dev/ttyACM*": {"/dev/ttyACM0"}},
		map[string]*stubLink{"/dev/ttyACM0": {idn: "GM-A"}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if devices := s.Scan(ctx); len(devices) != 0 {
		t.Errorf("cancelled scan registered %d devices", len(devices))
	}
}

type eventRecorder struct {
	mu    sync.Mutex
	types []model.EventType
}

func (r *eventRecorder) Publish(event model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, event.Type)
}

func TestScanner_Rescan(t *testing.T) {
	old := &stubLink{idn: "GM-OLD"}
	links := map[string]*stubLink{"/dev/ttyACM0": old}
	globs := map[string][]string{"/dev/ttyACM*": {"/dev/ttyACM0"}}
	s := newTestScanner([]string{"/dev/ttyACM*"}, globs, links)

	rec := &eventRecorder{}
	s.SetPublisher(rec)

	reg := registry.NewRegistry(nil)
	reg.Replace(s.Scan(context.Background()))

	replacement := &stubLink{idn: "GM-NEW"}
	links["/dev/ttyACM0"] = replacement
	links["/dev/ttyACM1"] = &stubLink{idn: "GM-TWO"}
	globs["/dev/ttyACM*"] = []string{"/dev/ttyACM0", "/dev/ttyACM1"}

	if n := s.Rescan(context.Background(), reg); n != 2 {
		t.Fatalf("Rescan() = %d, want 2", n)
	}
	if !old.isClosed() {
		t.Error("old link not closed")
	}

	d, ok := reg.Get("pico_0")
	if !ok || d.IDN != "GM-NEW" {
		t.Errorf("pico_0 after rescan = %+v", d)
	}

	want := []model.EventType{
		model.EventDeviceRegistered,
		model.EventDeviceRegistered,
		model.EventDeviceRegistered,
		model.EventRegistryRescanned,
	}
	if !reflect.DeepEqual(rec.types, want) {
		t.Errorf("events = %v, want %v", rec.types, want)
	}
}

func TestNewScanner_Defaults(t *testing.T) {
	s := NewScanner(Config{}, nil)
	cfg := s.GetConfig()

	if len(cfg.Patterns) == 0 {
		t.Error("expected platform default patterns")
	}
	if cfg.BaudRate != 115200 {
		t.Errorf("BaudRate = %d", cfg.BaudRate)
	}
	if cfg.Timeout != 2*time.Second {
		t.Errorf("Timeout = %s", cfg.Timeout)
	}
}
