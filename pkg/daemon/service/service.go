// Package service manages the lifedashd systemd user service unit.
package service

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"
)

const unitName = "lifedashd.service"

// UnitContents returns the systemd unit file contents for the given binary
// path. configPath is passed with --config when set.
func UnitContents(binaryPath, configPath string) string {
	cmdline := binaryPath
	if configPath != "" {
		cmdline += " --config " + configPath
	}
	return fmt.Sprintf(`[Unit]
Description=lifedash daemon
Documentation=https://github.com/modoterra/lifedash

[Service]
Type=notify
ExecStart=%s
Restart=on-failure
RestartSec=5
WatchdogSec=30

[Install]
WantedBy=default.target
`, cmdline)
}

// UnitPath returns the path to the systemd user unit file.
func UnitPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine user config directory: %w", err)
	}
	return filepath.Join(configDir, "systemd", "user", unitName), nil
}

// Install writes the unit file next to the resolved lifedashd binary, then
// reloads the user manager, enables the unit and starts it.
func Install(ctx context.Context, configPath string) error {
	bin, err := exec.LookPath("lifedashd")
	if err != nil {
		return fmt.Errorf("lifedashd not found in PATH: %w", err)
	}
	if bin, err = filepath.Abs(bin); err != nil {
		return fmt.Errorf("resolve lifedashd: %w", err)
	}
	if configPath != "" {
		if configPath, err = filepath.Abs(configPath); err != nil {
			return fmt.Errorf("resolve config: %w", err)
		}
	}

	path, err := UnitPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create unit dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(UnitContents(bin, configPath)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	conn, err := dbus.NewUserConnectionContext(ctx)
	if err != nil {
		return fmt.Errorf("dbus connect: %w", err)
	}
	defer conn.Close()

	if err := conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("daemon-reload: %w", err)
	}
	if _, _, err := conn.EnableUnitFilesContext(ctx, []string{unitName}, false, true); err != nil {
		return fmt.Errorf("enable %s: %w", unitName, err)
	}
	return waitJob(ctx, "start", func(ch chan<- string) (int, error) {
		return conn.StartUnitContext(ctx, unitName, "replace", ch)
	})
}

// Uninstall stops and disables the unit, removes its file and reloads the
// user manager. Stop and disable failures are ignored so a half-installed
// unit can still be removed.
func Uninstall(ctx context.Context) error {
	conn, err := dbus.NewUserConnectionContext(ctx)
	if err != nil {
		return fmt.Errorf("dbus connect: %w", err)
	}
	defer conn.Close()

	_ = waitJob(ctx, "stop", func(ch chan<- string) (int, error) {
		return conn.StopUnitContext(ctx, unitName, "replace", ch)
	})
	_, _ = conn.DisableUnitFilesContext(ctx, []string{unitName}, false)

	path, err := UnitPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	if err := conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("daemon-reload: %w", err)
	}
	return nil
}

// UnitState is the live state of the user unit as reported over D-Bus.
type UnitState struct {
	ActiveState string
	SubState    string
	MainPID     uint32
	MemBytes    uint64
}

// String renders the state the way systemctl does, e.g. "active (running)".
func (u UnitState) String() string {
	s := u.ActiveState
	if u.SubState != "" {
		s += " (" + u.SubState + ")"
	}
	if u.MainPID > 0 {
		s += fmt.Sprintf(" pid %d", u.MainPID)
	}
	if u.MemBytes > 0 && u.MemBytes != ^uint64(0) {
		s += fmt.Sprintf(" mem %.1fMiB", float64(u.MemBytes)/(1024*1024))
	}
	return s
}

// Query reads the unit state from the user systemd instance.
func Query(ctx context.Context) (UnitState, error) {
	conn, err := dbus.NewUserConnectionContext(ctx)
	if err != nil {
		return UnitState{}, fmt.Errorf("dbus connect: %w", err)
	}
	defer conn.Close()

	units, err := conn.ListUnitsByNamesContext(ctx, []string{unitName})
	if err != nil {
		return UnitState{}, fmt.Errorf("list units: %w", err)
	}
	if len(units) == 0 {
		return UnitState{ActiveState: "unknown"}, nil
	}

	u := units[0]
	state := UnitState{ActiveState: u.ActiveState, SubState: u.SubState}
	if u.ActiveState == "active" {
		props, err := conn.GetUnitTypePropertiesContext(ctx, u.Name, "Service")
		if err == nil {
			if pid, ok := props["MainPID"].(uint32); ok {
				state.MainPID = pid
			}
			if mem, ok := props["MemoryCurrent"].(uint64); ok {
				state.MemBytes = mem
			}
		}
	}
	return state, nil
}

// Control runs start, stop or restart on the unit and waits for the job.
func Control(ctx context.Context, action string) error {
	var run func(*dbus.Conn, chan<- string) (int, error)
	switch action {
	case "start":
		run = func(c *dbus.Conn, ch chan<- string) (int, error) { return c.StartUnitContext(ctx, unitName, "replace", ch) }
	case "stop":
		run = func(c *dbus.Conn, ch chan<- string) (int, error) { return c.StopUnitContext(ctx, unitName, "replace", ch) }
	case "restart":
		run = func(c *dbus.Conn, ch chan<- string) (int, error) { return c.RestartUnitContext(ctx, unitName, "replace", ch) }
	default:
		return fmt.Errorf("unsupported action %q for %s", action, unitName)
	}

	conn, err := dbus.NewUserConnectionContext(ctx)
	if err != nil {
		return fmt.Errorf("dbus connect: %w", err)
	}
	defer conn.Close()
	return waitJob(ctx, action, func(ch chan<- string) (int, error) { return run(conn, ch) })
}

// waitJob queues a unit job and blocks until systemd reports its result.
func waitJob(ctx context.Context, action string, queue func(chan<- string) (int, error)) error {
	ch := make(chan string, 1)
	if _, err := queue(ch); err != nil {
		return fmt.Errorf("systemd %s %s: %w", action, unitName, err)
	}
	select {
	case result := <-ch:
		if result != "done" {
			return fmt.Errorf("systemd %s %s: job result %q", action, unitName, result)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns a human-readable status string.
func Status(ctx context.Context, socketPath string) string {
	return status(ctx, socketPath, Query)
}

func status(ctx context.Context, socketPath string, query func(context.Context) (UnitState, error)) string {
	socket := "inactive"
	if _, err := os.Stat(socketPath); err == nil {
		socket = "active"
	}
	lines := []string{fmt.Sprintf("socket: %s (%s)", socket, socketPath)}

	path, err := UnitPath()
	if err != nil {
		return lines[0]
	}
	unit := "not installed"
	if _, err := os.Stat(path); err == nil {
		if state, err := query(ctx); err != nil {
			unit = "unknown (" + err.Error() + ")"
		} else {
			unit = state.String()
		}
	}
	return strings.Join(append(lines, "systemd user service: "+unit), "\n")
}
