package platform

import (
	"bufio"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// probeTimeout bounds every external utility call so a hung helper cannot
// stall the tick loop.
const probeTimeout = 2 * time.Second

func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// runCommand executes name with args and returns trimmed stdout
func runCommand(name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return "", errors.Wrapf(err, "%s failed", name)
	}
	return strings.TrimSpace(string(out)), nil
}

// parseMillisIdle converts millisecond output (xprintidle, xssstate -i) to seconds
func parseMillisIdle(out string) (float64, error) {
	ms, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	if err != nil {
		return UnknownIdle, errors.Wrap(err, "unexpected idle output")
	}
	if ms < 0 {
		return UnknownIdle, errors.Errorf("negative idle time %d", ms)
	}
	return float64(ms) / 1000.0, nil
}

// parseHIDIdleTime extracts HIDIdleTime (nanoseconds) from `ioreg -c IOHIDSystem`
func parseHIDIdleTime(out string) (float64, error) {
	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, `"HIDIdleTime"`) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			break
		}
		nanos, err := strconv.ParseInt(fields[len(fields)-1], 10, 64)
		if err != nil {
			return UnknownIdle, errors.Wrap(err, "unexpected HIDIdleTime value")
		}
		return float64(nanos) / 1e9, nil
	}
	return UnknownIdle, errors.New("HIDIdleTime not found")
}

// parseCGSessionLocked reads the output of `CGSession -s`
func parseCGSessionLocked(out string) bool {
	return strings.Contains(out, "kCGSSessionScreenIsLocked = 1") ||
		strings.Contains(out, "ScreenIsLocked=1")
}

// screensaverActive reads the output of `gnome-screensaver-command -q`
func screensaverActive(out string) bool {
	return strings.Contains(out, "is active")
}

// findSessionID picks the session owned by uid (or username) from
// `loginctl list-sessions --no-legend`, whose columns are
// SESSION UID USER SEAT TTY.
func findSessionID(out string, uid int, username string) (string, bool) {
	want := strconv.Itoa(uid)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		if fields[1] == want || (username != "" && fields[2] == username) {
			return fields[0], true
		}
	}
	return "", false
}

// parseLockedHint reads the output of `loginctl show-session <id> -p LockedHint`
func parseLockedHint(out string) bool {
	return strings.Contains(out, "LockedHint=yes")
}

func titleOrUnknown(title string) string {
	title = strings.TrimSpace(strings.TrimRight(title, "\x00"))
	if title == "" {
		return UnknownWindowTitle
	}
	return title
}
