package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modoterra/lifedash/pkg/daemon"
	"github.com/modoterra/lifedash/pkg/logging"
	"github.com/modoterra/lifedash/pkg/store/memory"
)

// run executes the root command with fresh flag state.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	socketFlag, configPath = "", ""
	jsonOut, noteUnread = false, false
	taskDescription, subInfo, rephraseLang = "", "", ""
	configInitPreset, configInitDataDir = "local", ""
	configInitDetect, configInitForce = false, false
	logsLines, logsFollow = 50, false

	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// startDaemon serves an in-memory dashboard on a temp socket and returns the
// global flags pointing at it.
func startDaemon(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	sock := filepath.Join(dir, "d.sock")
	d := daemon.New(daemon.Options{Socket: sock, Store: memory.New(), Logger: logging.Discard()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	for i := 0; i < 50; i++ {
		if _, err := os.Stat(sock); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Cleanup(func() {
		cancel()
		d.Shutdown()
		if err := <-done; err != nil {
			t.Errorf("daemon: %v", err)
		}
	})
	return []string{"--socket", sock, "--config", filepath.Join(dir, "lifedash.yaml")}
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out)
	}
	return out
}

func TestVersionCommand(t *testing.T) {
	out := mustRun(t, "version")
	if !strings.HasPrefix(out, "lifedash ") {
		t.Errorf("version output = %q", out)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf", "lifedash.yaml")

	out := mustRun(t, "config", "init", "--preset", "ephemeral", "--config", path)
	if !strings.Contains(out, "store: memory") {
		t.Errorf("init output = %q", out)
	}

	out = mustRun(t, "config", "validate", path)
	if !strings.Contains(out, "valid") {
		t.Errorf("validate output = %q", out)
	}

	if _, err := run(t, "config", "init", "--config", path); err == nil {
		t.Error("expected init to refuse to overwrite")
	}
	mustRun(t, "config", "init", "--force", "--data-dir", dir, "--config", path)
}

func TestConfigValidateInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	content := []byte(`version: 2
store:
  driver: mongo
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "config", "validate", path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(out, "error(s)") {
		t.Errorf("output = %q", out)
	}
}

func TestPingWithoutDaemon(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "ping", "--socket", filepath.Join(dir, "none.sock"), "--config", filepath.Join(dir, "x.yaml"))
	if err == nil || !strings.Contains(err.Error(), "cannot connect") {
		t.Fatalf("err = %v", err)
	}
}

func TestPingCommand(t *testing.T) {
	flags := startDaemon(t)
	out := mustRun(t, append([]string{"ping"}, flags...)...)
	if !strings.Contains(out, "pong") {
		t.Errorf("ping output = %q", out)
	}
}

func TestNoteCommands(t *testing.T) {
	flags := startDaemon(t)
	with := func(args ...string) []string { return append(args, flags...) }

	mustRun(t, with("note", "add", "call", "mum")...)
	out := mustRun(t, with("note", "list")...)
	if !strings.Contains(out, "call mum") {
		t.Fatalf("note list = %q", out)
	}

	if _, err := run(t, with("note", "priority", "missing-id", "9")...); err == nil {
		t.Error("expected out-of-range priority to fail")
	}
	if _, err := run(t, with("note", "priority", "missing-id", "high")...); err == nil {
		t.Error("expected non-numeric priority to fail")
	}
}

func TestCashFlowCommands(t *testing.T) {
	flags := startDaemon(t)
	with := func(args ...string) []string { return append(args, flags...) }

	mustRun(t, with("tx", "add", "+100", "salary")...)
	mustRun(t, append(with("tx", "add"), "--", "-12.50", "lunch")...)

	if _, err := run(t, with("tx", "add", "12", "lunch")...); err == nil || !strings.Contains(err.Error(), "+/-amount") {
		t.Errorf("unsigned amount err = %v", err)
	}

	out := mustRun(t, with("tx", "summary")...)
	if !strings.Contains(out, "balance:        87.50") {
		t.Errorf("summary = %q", out)
	}

	out = mustRun(t, with("tx", "list")...)
	if !strings.Contains(out, "-12.50") || !strings.Contains(out, "+100.00") {
		t.Errorf("tx list = %q", out)
	}
}

func TestEventAndSubscriptionCommands(t *testing.T) {
	flags := startDaemon(t)
	with := func(args ...string) []string { return append(args, flags...) }

	mustRun(t, with("event", "add", "23:59", "standup")...)
	out := mustRun(t, with("event", "upcoming")...)
	if !strings.Contains(out, "Today") || !strings.Contains(out, "standup") {
		t.Errorf("upcoming = %q", out)
	}
	if _, err := run(t, with("event", "add", "standup")...); err == nil {
		t.Error("expected malformed event to fail")
	}

	mustRun(t, with("sub", "add", "9.99", "Music")...)
	mustRun(t, with("sub", "add", "5")...)
	out = mustRun(t, with("sub", "list", "--json")...)
	if !strings.Contains(out, `"name": "New Subscription"`) {
		t.Errorf("sub list json = %q", out)
	}
	out = mustRun(t, with("sub", "list")...)
	if !strings.Contains(out, "14.99") {
		t.Errorf("sub list = %q", out)
	}
}

func TestTaskCommands(t *testing.T) {
	flags := startDaemon(t)
	with := func(args ...string) []string { return append(args, flags...) }

	mustRun(t, with("task", "add", "first")...)
	mustRun(t, with("task", "add", "second", "-d", "details")...)
	mustRun(t, with("task", "move", "1", "0")...)

	out := mustRun(t, with("task", "list")...)
	if strings.Index(out, "second") > strings.Index(out, "first") {
		t.Errorf("task list order = %q", out)
	}
	if !strings.Contains(out, "Started today") {
		t.Errorf("task list = %q", out)
	}
	if _, err := run(t, with("task", "move", "0", "5")...); err == nil {
		t.Error("expected out-of-range move to fail")
	}
}

func TestRephraseWithoutProvider(t *testing.T) {
	flags := startDaemon(t)
	_, err := run(t, append([]string{"rephrase", "hello"}, flags...)...)
	if err == nil || !strings.Contains(err.Error(), "no assist provider") {
		t.Fatalf("err = %v", err)
	}
}

func TestRmByRecordRef(t *testing.T) {
	flags := startDaemon(t)
	with := func(args ...string) []string { return append(args, flags...) }

	out := mustRun(t, with("note", "add", "scratch")...)
	id := strings.TrimSpace(out[strings.LastIndex(out, " "):])

	mustRun(t, with("rm", "notes:memory:"+id)...)
	out = mustRun(t, with("note", "list")...)
	if !strings.Contains(out, "no notes") {
		t.Errorf("note list after rm = %q", out)
	}

	if _, err := run(t, with("rm", "widget:memory:"+id)...); err == nil {
		t.Error("expected unknown kind to fail")
	}
	if _, err := run(t, with("rm", "just-an-id")...); err == nil {
		t.Error("expected malformed ref to fail")
	}
}
