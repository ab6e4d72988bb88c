package activity

import (
	"context"
	"os/exec"
	"strings"
)

// Session is one line of `who` output.
type Session struct {
	User string
	TTY  string
}

// ParseWho extracts user and terminal from each line of `who` output.
// Lines with fewer than two fields are ignored.
func ParseWho(output string) []Session {
	var sessions []Session
	for _, line := range strings.Split(output, "\n") {
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		sessions = append(sessions, Session{User: parts[0], TTY: parts[1]})
	}
	return sessions
}

// WhoSessions lists the logged in sessions by running `who`.
func WhoSessions(ctx context.Context) ([]Session, error) {
	out, err := exec.CommandContext(ctx, "who").Output()
	if err != nil {
		return nil, err
	}
	return ParseWho(string(out)), nil
}
