package instance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ericpauley/ec2-autostop/internal/config"
)

const metadataURL = "http://169.254.169.254/latest/meta-data/instance-id"

// Runner executes name with args and extra environment variables.
type Runner func(ctx context.Context, env []string, name string, args ...string) (stdout, stderr []byte, err error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, env []string, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// CheckTools makes sure curl and the AWS CLI can be found.
func CheckTools(lookPath func(string) (string, error), cliPath string) error {
	if _, err := lookPath("curl"); err != nil {
		return fmt.Errorf("curl is not installed: %w", err)
	}
	if _, err := lookPath(cliPath); err != nil {
		return fmt.Errorf("aws-cli is not installed: %w", err)
	}
	return nil
}

// CLI is a Controller that shells out to curl and the AWS CLI.
type CLI struct {
	path     string
	settings config.AWSSettings
	run      Runner
	log      *slog.Logger
}

func NewCLI(path string, settings config.AWSSettings, run Runner, logger *slog.Logger) *CLI {
	if run == nil {
		run = ExecRunner
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CLI{path: path, settings: settings, run: run, log: logger}
}

func (c *CLI) InstanceID(ctx context.Context) (string, error) {
	stdout, _, err := c.run(ctx, nil, "curl", "-s", "-f", "-m", "1", metadataURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	id := strings.TrimSpace(string(stdout))
	if id == "" {
		return "", ErrUnavailable
	}
	return id, nil
}

func (c *CLI) env() []string {
	if c.settings.AccessKeyID == "" {
		return nil
	}
	return []string{
		"AWS_ACCESS_KEY_ID=" + c.settings.AccessKeyID,
		"AWS_SECRET_ACCESS_KEY=" + c.settings.SecretAccessKey,
	}
}

func (c *CLI) ec2(ctx context.Context, args ...string) ([]byte, []byte, error) {
	args = append([]string{"--region", c.settings.Region, "--output", "json", "ec2"}, args...)
	return c.run(ctx, c.env(), c.path, args...)
}

type describeOutput struct {
	Reservations []struct {
		Instances []struct {
			LaunchTime string `json:"LaunchTime"`
		} `json:"Instances"`
	} `json:"Reservations"`
}

func (c *CLI) LaunchTime(ctx context.Context, instanceID string) (time.Time, error) {
	stdout, stderr, err := c.ec2(ctx, "describe-instances", "--instance-ids", instanceID)
	if err != nil {
		c.log.Info(strings.TrimSpace(string(stderr)))
		return time.Time{}, fmt.Errorf("describing %s: %w", instanceID, err)
	}
	return parseLaunchTime(stdout)
}

func parseLaunchTime(data []byte) (time.Time, error) {
	var out describeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return time.Time{}, fmt.Errorf("parsing describe-instances output: %w", err)
	}
	if len(out.Reservations) == 0 || len(out.Reservations[0].Instances) == 0 {
		return time.Time{}, errors.New("describe-instances returned no instance")
	}
	// e.g. 2024-06-01T12:00:00.000Z or 2024-06-01T12:00:00+00:00
	launch, err := time.Parse(time.RFC3339Nano, out.Reservations[0].Instances[0].LaunchTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing launch time: %w", err)
	}
	return launch, nil
}

func (c *CLI) Stop(ctx context.Context, instanceID string, hibernate bool) error {
	args := []string{"stop-instances", "--instance-ids", instanceID}
	if hibernate {
		args = append(args, "--hibernate")
	}
	_, stderr, err := c.ec2(ctx, args...)
	if err != nil {
		return fmt.Errorf("stopping %s: %w: %s", instanceID, err, strings.TrimSpace(string(stderr)))
	}
	return nil
}
