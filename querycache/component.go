package querycache

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/jobdeck/go-querycache/component"
	"github.com/jobdeck/go-querycache/event"
	"github.com/jobdeck/go-querycache/logger"
)

// ComponentName registration name of the querycache component
const ComponentName = "querycache"

// configKey configuration section read during Init
const configKey = "querycache"

// ComponentOption configures the Component
type ComponentOption func(*Component)

// WithDispatcher wires an event dispatcher; configured invalidation rules
// subscribe to it on Start
func WithDispatcher(d event.Dispatcher) ComponentOption {
	return func(c *Component) { c.dispatcher = d }
}

// Component lifecycle wrapper around Client
//
// Init reads the "querycache" configuration section and builds the client.
// Start schedules the periodic gc sweep and subscribes the configured
// invalidation rules to the event dispatcher. Stop tears both down.
type Component struct {
	cfg        Config
	client     *Client
	dispatcher event.Dispatcher
	scheduler  gocron.Scheduler
	unsubs     []event.UnsubscribeFunc
	log        *logger.CtxZapLogger
}

// NewComponent creates the querycache component
func NewComponent(opts ...ComponentOption) *Component {
	c := &Component{
		log: logger.GetLogger("querycache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements component.Component
func (c *Component) Name() string {
	return ComponentName
}

// DependsOn implements component.Component
func (c *Component) DependsOn() []string {
	return []string{"logger", "optional:event"}
}

// Init implements component.Component
func (c *Component) Init(ctx context.Context, loader component.ConfigLoader) error {
	cfg := DefaultConfig()
	if loader != nil && loader.IsSet(configKey) {
		if err := loader.Unmarshal(configKey, &cfg); err != nil {
			return ErrConfigInvalid.Wrap(err)
		}
		cfg.ApplyDefaults()
	}
	c.cfg = cfg

	if !cfg.Enabled {
		c.log.InfoCtx(ctx, "querycache disabled by configuration")
		return nil
	}

	client, err := NewClient(cfg)
	if err != nil {
		return err
	}
	c.client = client
	return nil
}

// Start implements component.Component
func (c *Component) Start(ctx context.Context) error {
	if c.client == nil {
		return nil
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return ErrConfigInvalid.Wrapf(err, "create sweep scheduler")
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(c.cfg.SweepInterval),
		gocron.NewTask(func() {
			c.client.Sweep(time.Now())
		}),
	)
	if err != nil {
		return ErrConfigInvalid.Wrapf(err, "schedule gc sweep")
	}
	scheduler.Start()
	c.scheduler = scheduler

	c.subscribeInvalidationRules(ctx)

	c.log.InfoCtx(ctx, "querycache started",
		zap.Duration("sweep_interval", c.cfg.SweepInterval),
		zap.Int("invalidation_rules", len(c.cfg.Invalidation)))
	return nil
}

// Stop implements component.Component
func (c *Component) Stop(ctx context.Context) error {
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil

	if c.scheduler != nil {
		if err := c.scheduler.Shutdown(); err != nil {
			c.log.WarnCtx(ctx, "sweep scheduler shutdown failed", zap.Error(err))
		}
		c.scheduler = nil
	}

	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Client returns the cache client; nil before Init or when disabled
func (c *Component) Client() *Client {
	return c.client
}

// GetHealthChecker implements component.HealthCheckProvider
func (c *Component) GetHealthChecker() component.HealthChecker {
	return &healthChecker{component: c}
}

// subscribeInvalidationRules binds configured events to prefix invalidation
func (c *Component) subscribeInvalidationRules(ctx context.Context) {
	if c.dispatcher == nil || len(c.cfg.Invalidation) == 0 {
		return
	}

	for _, rule := range c.cfg.Invalidation {
		prefixes := make([]Key, 0, len(rule.KeyPrefixes))
		for _, raw := range rule.KeyPrefixes {
			prefix := make(Key, len(raw))
			for i, p := range raw {
				prefix[i] = p
			}
			prefixes = append(prefixes, prefix)
		}

		unsub := c.dispatcher.Subscribe(rule.Event, event.ListenerFunc(
			func(listenerCtx context.Context, _ event.Event) error {
				return c.client.Invalidate(listenerCtx, prefixes...)
			}))
		c.unsubs = append(c.unsubs, unsub)
	}
	c.log.DebugCtx(ctx, "invalidation rules subscribed",
		zap.Int("rules", len(c.cfg.Invalidation)))
}

// healthChecker reports client liveness
type healthChecker struct {
	component *Component
}

func (h *healthChecker) Name() string {
	return ComponentName
}

func (h *healthChecker) Check(ctx context.Context) error {
	if h.component.client == nil {
		return nil // disabled is healthy
	}
	if h.component.client.closed.Load() {
		return ErrClientClosed
	}
	return nil
}
