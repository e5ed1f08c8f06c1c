package command

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestRunCollectsStdout(t *testing.T) {
	requireShell(t)

	out, err := Run(context.Background(), "sh", []string{"-c", "echo hello"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))
}

func TestRunStreamsLines(t *testing.T) {
	requireShell(t)

	var lines []string
	_, err := Run(context.Background(), "sh", []string{"-c", "echo a; echo b; echo c"}, func(line string) error {
		lines = append(lines, line)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, lines)
}

func TestRunLineErrorStopsTool(t *testing.T) {
	requireShell(t)

	stop := errors.New("stop")
	start := time.Now()
	_, err := Run(context.Background(), "sh", []string{"-c", "echo first; sleep 30; echo never"}, func(string) error {
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRunFailureCarriesStderr(t *testing.T) {
	requireShell(t)

	_, err := Run(context.Background(), "sh", []string{"-c", "echo 'ERROR: Sign in to confirm' >&2; exit 1"}, nil)

	var cmdErr *Error
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "ERROR: Sign in to confirm", cmdErr.Stderr)
	assert.Contains(t, err.Error(), "Sign in to confirm")
}

func TestRunDeadline(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Run(ctx, "sh", []string{"-c", "sleep 30"}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTailBufferKeepsEnd(t *testing.T) {
	b := &tailBuffer{limit: 4}
	b.Write([]byte("abc"))
	b.Write([]byte("defg"))
	assert.Equal(t, "defg", b.String())
}
