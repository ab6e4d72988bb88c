// Package instance talks to EC2 about the instance the watchdog runs on.
package instance

import (
	"context"
	"errors"
	"time"
)

// metadataTimeout bounds the instance id lookup; off EC2 the link-local
// endpoint never answers.
const metadataTimeout = time.Second

// ErrUnavailable is returned when the instance metadata service cannot be
// reached or gives no answer.
var ErrUnavailable = errors.New("instance metadata unavailable")

// Controller resolves the instance identity, its launch time and stops it.
type Controller interface {
	InstanceID(ctx context.Context) (string, error)
	LaunchTime(ctx context.Context, instanceID string) (time.Time, error)
	Stop(ctx context.Context, instanceID string, hibernate bool) error
}
