package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericpauley/ec2-autostop/internal/config"
	"github.com/ericpauley/ec2-autostop/internal/instance"
)

type fakeController struct {
	idErr error
	stops int
}

func (f *fakeController) InstanceID(context.Context) (string, error) {
	if f.idErr != nil {
		return "", f.idErr
	}
	return "i-0123456789abcdef0", nil
}

func (f *fakeController) LaunchTime(context.Context, string) (time.Time, error) {
	return time.Now(), nil
}

func (f *fakeController) Stop(context.Context, string, bool) error {
	f.stops++
	return nil
}

type harness struct {
	stdout      bytes.Buffer
	stderr      bytes.Buffer
	controller  *fakeController
	constructed bool
	looked      []string
	missing     string
}

func (h *harness) env() environment {
	return environment{
		stdout: &h.stdout,
		stderr: &h.stderr,
		lookPath: func(file string) (string, error) {
			h.looked = append(h.looked, file)
			if file == h.missing {
				return "", exec.ErrNotFound
			}
			return "/usr/bin/" + file, nil
		},
		newController: func(context.Context, *config.Config, config.AWSSettings, *slog.Logger) (instance.Controller, error) {
			h.constructed = true
			return h.controller, nil
		},
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "autostop.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validConfig = `{
	"backend": "cli",
	"utmp_path": "/nonexistent/utmp",
	"aws_settings": {"region": "us-east-1", "access_key_id": "AKIDEXAMPLE", "secret_access_key": "secret"}
}`

func TestRun_BootstrapFailures(t *testing.T) {
	tests := []struct {
		description string
		config      string
		missing     string
		idErr       error
		logged      string
		detail      string
	}{
		{"missing aws_settings", `{"backend": "cli"}`, "", nil, `Missing "aws_settings" in config`, ""},
		{"missing curl", validConfig, "curl", nil, "Missing required tool", "curl is not installed"},
		{"missing aws cli", validConfig, "aws", nil, "Missing required tool", "aws-cli is not installed"},
		{"metadata unreachable", validConfig, "", instance.ErrUnavailable, "Failed to get instance ID of current machine", "instance metadata unavailable"},
		{"invalid config", `{"aws_settings": {}}`, "", nil, "Failed to load config", "Region"},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			h := &harness{controller: &fakeController{idErr: test.idErr}, missing: test.missing}
			path := writeConfig(t, test.config)

			code := run(context.Background(), []string{"--config-file", path}, h.env())

			assert.Equal(t, 1, code)
			assert.Regexp(t, `\[ERROR\] `+regexp.QuoteMeta(test.logged), h.stdout.String())
			assert.Contains(t, h.stdout.String(), test.detail)
			assert.Zero(t, h.controller.stops)
		})
	}
}

func TestRun_MissingSettingsMakesNoCalls(t *testing.T) {
	h := &harness{controller: &fakeController{}}
	path := writeConfig(t, `{"watch_paths": ["/data"]}`)

	code := run(context.Background(), []string{"--config-file", path}, h.env())

	assert.Equal(t, 1, code)
	assert.False(t, h.constructed, "no EC2 client without aws_settings")
}

func TestRun_SDKBackendSkipsToolCheck(t *testing.T) {
	h := &harness{controller: &fakeController{idErr: errors.New("no route to host")}, missing: "curl"}
	path := writeConfig(t, `{"aws_settings": {"region": "us-east-1"}}`)

	code := run(context.Background(), []string{"--config-file", path}, h.env())

	assert.Equal(t, 1, code)
	assert.Empty(t, h.looked)
	assert.True(t, h.constructed)
}

func TestRun_Usage(t *testing.T) {
	h := &harness{controller: &fakeController{}}

	assert.Equal(t, 2, run(context.Background(), nil, h.env()))
	assert.Contains(t, h.stderr.String(), "--config-file is required")

	assert.Equal(t, 2, run(context.Background(), []string{"--bogus"}, h.env()))
	assert.Equal(t, 0, run(context.Background(), []string{"--help"}, h.env()))
	assert.False(t, h.constructed)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	h := &harness{controller: &fakeController{}}
	path := writeConfig(t, validConfig)
	logPath := filepath.Join(t.TempDir(), "autostop.log")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code := run(ctx, []string{"--config-file", path, "--log-file", logPath}, h.env())

	assert.Equal(t, 0, code)
	assert.Zero(t, h.controller.stops)
	assert.Empty(t, h.stdout.String(), "logs go to the log file")
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[INFO] Max idle time")
	assert.Contains(t, string(data), "instance=i-0123456789abcdef0")
	assert.Contains(t, string(data), "[INFO] Shutting down")
}
