// Package command runs external tools, streaming stdout line by line and
// keeping the tail of stderr for error classification.
package command

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	// stderrTail is how much stderr is kept for the error message.
	stderrTail = 16 << 10
	waitDelay  = 5 * time.Second
)

// Error is a failed tool invocation.
type Error struct {
	Tool   string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %s", e.Tool, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// LineFunc receives each stdout line. A non-nil error stops the tool and is
// returned from Run.
type LineFunc func(line string) error

// Run executes name with args. When onLine is nil stdout is returned whole.
func Run(parent context.Context, name string, args []string, onLine LineFunc) ([]byte, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = waitDelay

	stderr := &tailBuffer{limit: stderrTail}
	cmd.Stderr = stderr

	var stdout bytes.Buffer
	var lineErr error

	if onLine == nil {
		cmd.Stdout = &stdout
		if err := cmd.Start(); err != nil {
			return nil, &Error{Tool: name, Err: err}
		}
	} else {
		pipe, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, &Error{Tool: name, Err: err}
		}
		lineErr = scan(pipe, onLine, cancel)
	}

	err := cmd.Wait()
	switch {
	case lineErr != nil:
		return nil, lineErr
	case err == nil:
		return stdout.Bytes(), nil
	case parent.Err() != nil:
		return nil, parent.Err()
	}
	return nil, &Error{Tool: name, Stderr: strings.TrimSpace(stderr.String()), Err: err}
}

func scan(r io.Reader, onLine LineFunc, cancel context.CancelFunc) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)

	for scanner.Scan() {
		if err := onLine(scanner.Text()); err != nil {
			cancel()
			return err
		}
	}
	return nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
