// Package supervisor runs the long-lived parts of the process under a suture
// tree so a crashed listener or subscriber is restarted with backoff.
package supervisor

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/actuallystonmai/cinema-recommendation/internal/logging"
)

type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	FailureThreshold float64
	// FailureDecay is the rate at which failures decay, in seconds.
	FailureDecay float64
	// FailureBackoff is how long to wait once the threshold is exceeded.
	FailureBackoff time.Duration
	// ShutdownTimeout bounds how long each service gets to stop.
	ShutdownTimeout time.Duration
}

func (c *TreeConfig) applyDefaults() {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = 30
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = 15 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// Tree has two layers: api (HTTP listener) and messaging (catalogue events).
type Tree struct {
	root      *suture.Supervisor
	api       *suture.Supervisor
	messaging *suture.Supervisor
	config    TreeConfig
}

//nolint:gocritic // zerolog.Logger is passed by value
func NewTree(logger zerolog.Logger, config TreeConfig) *Tree {
	config.applyDefaults()

	slogger := logging.NewSlogLogger(logging.Component(logger, "supervisor"))
	hook := (&sutureslog.Handler{Logger: slogger}).MustHook()

	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	rootSpec := childSpec
	rootSpec.EventHook = hook

	root := suture.New("cinema-recommendation", rootSpec)
	api := suture.New("api-layer", childSpec)
	messaging := suture.New("messaging-layer", childSpec)
	root.Add(api)
	root.Add(messaging)

	return &Tree{root: root, api: api, messaging: messaging, config: config}
}

func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

func (t *Tree) AddMessagingService(svc suture.Service) suture.ServiceToken {
	return t.messaging.Add(svc)
}

// Serve blocks until ctx is canceled and every service has stopped.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}
