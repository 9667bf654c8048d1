package service

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"
)

// LogLine is one journal entry of the daemon unit. Fields holds the
// structured attributes the journal handler attached.
type LogLine struct {
	Time     time.Time
	Priority int
	Message  string
	Fields   map[string]string
}

// String renders the line like
// "2026-10-17 10:45:12 warn  store unhealthy ERR=locked STORE=sqlite".
func (l LogLine) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s %s", l.Time.Local().Format("2006-01-02 15:04:05"), priorityName(l.Priority), l.Message)
	keys := make([]string, 0, len(l.Fields))
	for k := range l.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, l.Fields[k])
	}
	return b.String()
}

func priorityName(p int) string {
	switch {
	case p <= 3:
		return "error"
	case p == 4:
		return "warn"
	case p <= 6:
		return "info"
	}
	return "debug"
}

// Logs prints the last n journal entries of the unit through journalctl and,
// with follow, keeps streaming until ctx is done.
func Logs(ctx context.Context, n int, follow bool, emit func(LogLine)) error {
	args := []string{"--user", "-u", unitName, "-o", "json", "-n", strconv.Itoa(n)}
	if follow {
		args = append(args, "-f")
	}
	cmd := exec.CommandContext(ctx, "journalctl", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("journalctl pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("journalctl start: %w", err)
	}

	readErr := readJournal(stdout, emit)
	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return nil
	}
	if readErr != nil {
		return readErr
	}
	if waitErr != nil {
		return fmt.Errorf("journalctl: %w", waitErr)
	}
	return nil
}

// readJournal decodes journalctl -o json output, one entry per line.
func readJournal(r io.Reader, emit func(LogLine)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var entry map[string]json.RawMessage
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			continue
		}
		emit(parseEntry(entry))
	}
	return sc.Err()
}

func parseEntry(entry map[string]json.RawMessage) LogLine {
	line := LogLine{Priority: 6, Fields: map[string]string{}}
	for key, raw := range entry {
		v := journalValue(raw)
		switch {
		case key == "MESSAGE":
			line.Message = v
		case key == "PRIORITY":
			if p, err := strconv.Atoi(v); err == nil {
				line.Priority = p
			}
		case key == "__REALTIME_TIMESTAMP":
			if us, err := strconv.ParseInt(v, 10, 64); err == nil {
				line.Time = time.UnixMicro(us)
			}
		case strings.HasPrefix(key, "_"),
			strings.HasPrefix(key, "SYSLOG_"),
			strings.HasPrefix(key, "CODE_"),
			key == "MESSAGE_ID", key == "INVOCATION_ID", key == "UNIT", key == "USER_UNIT":
		default:
			line.Fields[key] = v
		}
	}
	return line
}

// journalValue reads a field that journalctl encodes either as a string or,
// for non-UTF-8 data, as an array of bytes.
func journalValue(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var bs []byte
	var ints []int
	if json.Unmarshal(raw, &ints) == nil {
		for _, i := range ints {
			bs = append(bs, byte(i))
		}
		return string(bs)
	}
	return string(raw)
}
