package linkcheck

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func helperRunner(stdout, stderr string, exit int, calls *[][]string) *ExecRunner {
	r := NewExecRunner("")
	r.execCommandContext = func(ctx context.Context, _ string, args ...string) *exec.Cmd {
		if calls != nil {
			*calls = append(*calls, append([]string(nil), args...))
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestExecRunnerHelperProcess", "--")
		cmd.Env = append(os.Environ(),
			"GO_WANT_HELPER_PROCESS=1",
			fmt.Sprintf("HELPER_STDOUT=%s", stdout),
			fmt.Sprintf("HELPER_STDERR=%s", stderr),
			fmt.Sprintf("HELPER_EXIT=%d", exit),
		)
		return cmd
	}
	return r
}

func TestExecRunner_Run_ZeroExit(t *testing.T) {
	t.Parallel()

	var calls [][]string
	r := helperRunner("all good", "", 0, &calls)

	var out, errOut bytes.Buffer
	code, err := r.Run(context.Background(), "muffet", []string{"--color=never", "https://site.test"}, &out, &errOut)
	require.NoError(t, err)
	require.Equal(t, 0, code)
	require.Equal(t, "all good", out.String())
	require.Equal(t, [][]string{{"--color=never", "https://site.test"}}, calls)
}

func TestExecRunner_Run_NonZeroExitIsNotAnError(t *testing.T) {
	t.Parallel()

	r := helperRunner("https://site.test/\n", "warn", 1, nil)

	var out, errOut bytes.Buffer
	code, err := r.Run(context.Background(), "muffet", nil, &out, &errOut)
	require.NoError(t, err)
	require.Equal(t, 1, code)
	require.Equal(t, "https://site.test/\n", out.String())
	require.Equal(t, "warn", errOut.String())
}

func TestExecRunner_Run_LaunchFailure(t *testing.T) {
	t.Parallel()

	r := NewExecRunner("")

	var out, errOut bytes.Buffer
	code, err := r.Run(context.Background(), "/nonexistent/bin/muffet", nil, &out, &errOut)
	require.ErrorIs(t, err, ErrLaunch)
	require.Equal(t, 1, code)
}

func TestExecRunnerHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	_, _ = os.Stdout.WriteString(os.Getenv("HELPER_STDOUT"))
	_, _ = os.Stderr.WriteString(os.Getenv("HELPER_STDERR"))

	code, _ := strconv.Atoi(os.Getenv("HELPER_EXIT"))
	os.Exit(code)
}
