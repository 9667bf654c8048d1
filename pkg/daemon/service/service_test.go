package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestUnitContents(t *testing.T) {
	got := UnitContents("/usr/local/bin/lifedashd", "")

	if !strings.Contains(got, "ExecStart=/usr/local/bin/lifedashd\n") {
		t.Error("unit file missing ExecStart with binary path")
	}
	if !strings.Contains(got, "Type=notify") {
		t.Error("unit file missing Type=notify")
	}
	if !strings.Contains(got, "WatchdogSec=") {
		t.Error("unit file missing WatchdogSec")
	}
	if !strings.Contains(got, "Restart=on-failure") {
		t.Error("unit file missing Restart=on-failure")
	}
	if !strings.Contains(got, "[Install]") {
		t.Error("unit file missing [Install] section")
	}
}

func TestUnitContentsWithConfig(t *testing.T) {
	got := UnitContents("/usr/bin/lifedashd", "/home/me/.config/lifedash/lifedash.yaml")
	if !strings.Contains(got, "ExecStart=/usr/bin/lifedashd --config /home/me/.config/lifedash/lifedash.yaml\n") {
		t.Errorf("unexpected ExecStart in:\n%s", got)
	}
}

func TestUnitPath(t *testing.T) {
	path, err := UnitPath()
	if err != nil {
		t.Fatalf("UnitPath() error: %v", err)
	}
	if !strings.HasSuffix(path, "systemd/user/lifedashd.service") {
		t.Errorf("UnitPath() = %q, want suffix systemd/user/lifedashd.service", path)
	}
}

func TestUnitStateString(t *testing.T) {
	tests := []struct {
		state UnitState
		want  string
	}{
		{UnitState{ActiveState: "inactive", SubState: "dead"}, "inactive (dead)"},
		{UnitState{ActiveState: "active", SubState: "running", MainPID: 42, MemBytes: 3 * 1024 * 1024}, "active (running) pid 42 mem 3.0MiB"},
		{UnitState{ActiveState: "active", MemBytes: ^uint64(0)}, "active"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestStatusNoSocket(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	got := Status(context.Background(), filepath.Join(t.TempDir(), "missing.sock"))
	if !strings.Contains(got, "socket: inactive") {
		t.Errorf("Status() should report inactive socket, got: %s", got)
	}
	if !strings.Contains(got, "systemd user service: not installed") {
		t.Errorf("Status() should report missing unit, got: %s", got)
	}
}

func TestStatusWithSocketAndUnit(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	unitPath, err := UnitPath()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(unitPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(unitPath, []byte(UnitContents("/bin/lifedashd", "")), 0o644); err != nil {
		t.Fatal(err)
	}

	sock := filepath.Join(t.TempDir(), "lifedashd.sock")
	if err := os.WriteFile(sock, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	got := status(context.Background(), sock, func(context.Context) (UnitState, error) {
		return UnitState{ActiveState: "active", SubState: "running", MainPID: 7}, nil
	})
	if !strings.Contains(got, "socket: active") {
		t.Errorf("Status() should report active socket, got: %s", got)
	}
	if !strings.Contains(got, "systemd user service: active (running) pid 7") {
		t.Errorf("unexpected unit line, got: %s", got)
	}

	got = status(context.Background(), sock, func(context.Context) (UnitState, error) {
		return UnitState{}, errors.New("no bus")
	})
	if !strings.Contains(got, "systemd user service: unknown (no bus)") {
		t.Errorf("unexpected unit line, got: %s", got)
	}
}

func TestControlRejectsUnknownAction(t *testing.T) {
	// Fails either at the bus connection or at the action check; never succeeds.
	if err := Control(context.Background(), "explode"); err == nil {
		t.Error("expected error for unsupported action")
	}
}

func TestReadJournal(t *testing.T) {
	input := strings.Join([]string{
		`{"__REALTIME_TIMESTAMP":"1792233912000000","PRIORITY":"4","MESSAGE":"store unhealthy","STORE":"sqlite","ERR":"locked","SYSLOG_IDENTIFIER":"lifedashd","_PID":"42"}`,
		`not json`,
		`{"MESSAGE":[104,105],"PRIORITY":"7"}`,
	}, "\n")

	var lines []LogLine
	if err := readJournal(strings.NewReader(input), func(l LogLine) { lines = append(lines, l) }); err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	first := lines[0]
	if first.Message != "store unhealthy" || first.Priority != 4 {
		t.Errorf("first = %+v", first)
	}
	if !first.Time.Equal(time.UnixMicro(1792233912000000)) {
		t.Errorf("time = %v", first.Time)
	}
	if len(first.Fields) != 2 || first.Fields["ERR"] != "locked" || first.Fields["STORE"] != "sqlite" {
		t.Errorf("fields = %v", first.Fields)
	}
	if got := first.String(); !strings.Contains(got, "warn  store unhealthy ERR=locked STORE=sqlite") {
		t.Errorf("String() = %q", got)
	}

	if lines[1].Message != "hi" || priorityName(lines[1].Priority) != "debug" {
		t.Errorf("second = %+v", lines[1])
	}
}
