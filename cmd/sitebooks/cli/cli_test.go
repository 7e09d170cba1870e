package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateCommandUsage(t *testing.T) {
	cases := map[string][]string{
		"no command":     nil,
		"unknown":        {"sideways"},
		"zero steps":     {"down", "-steps", "0"},
		"negative steps": {"down", "-steps", "-2"},
		"bad flag":       {"down", "-bogus"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
			cmd := MigrateCommand{DSN: "postgres://unused", Stdout: stdout, Stderr: stderr}

			code := cmd.Run(args)

			assert.Equal(t, 2, code)
			assert.Empty(t, stdout.String())
			assert.NotEmpty(t, stderr.String())
		})
	}
}

func TestJobsCommandUsage(t *testing.T) {
	stderr := new(bytes.Buffer)
	cmd := JobsCommand{RedisAddr: "127.0.0.1:0", Stdout: new(bytes.Buffer), Stderr: stderr}

	require.Equal(t, 2, cmd.Run(context.Background(), nil))
	assert.Contains(t, stderr.String(), "usage: sitebooks jobs")

	stderr.Reset()
	require.Equal(t, 2, cmd.Run(context.Background(), []string{"purge"}))
	assert.Contains(t, stderr.String(), `unknown jobs command "purge"`)
}

func TestJobsTriggerValidatesWindowBeforeEnqueue(t *testing.T) {
	cases := map[string]struct {
		args []string
		want string
	}{
		"malformed from": {args: []string{"-from", "01/02/2025", "-to", "2025-02-28"}, want: "from"},
		"reversed":       {args: []string{"-from", "2025-03-01", "-to", "2025-02-01"}, want: "after"},
		"half window":    {args: []string{"-from", "2025-03-01"}, want: "together"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			stderr := new(bytes.Buffer)
			cmd := JobsCommand{RedisAddr: "127.0.0.1:0", Stdout: new(bytes.Buffer), Stderr: stderr}

			code := cmd.Run(context.Background(), append([]string{"trigger"}, tc.args...))

			assert.Equal(t, 2, code)
			assert.Contains(t, stderr.String(), tc.want)
		})
	}
}
