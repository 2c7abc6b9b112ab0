package ingame

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tobbstr/tickfsm"
)

// Controller owns a Scene and the machine driving it.
type Controller struct {
	id      uuid.UUID
	cfg     Config
	scene   *Scene
	machine *Machine
	logger  *slog.Logger
}

// Option configures a Controller.
type Option func(*controllerOptions)

type controllerOptions struct {
	logger    *slog.Logger
	tracer    trace.Tracer
	factories []tickfsm.StateFactory[StateID, Event, *Scene]
}

// WithLogger sets the logger of the controller, its scene and its machine.
func WithLogger(logger *slog.Logger) Option {
	return func(o *controllerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer sets the tracer of the machine.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *controllerOptions) {
		o.tracer = tracer
	}
}

// WithStateFactory registers a factory consulted before the built-in states.
func WithStateFactory(factory tickfsm.StateFactory[StateID, Event, *Scene]) Option {
	return func(o *controllerOptions) {
		o.factories = append(o.factories, factory)
	}
}

// NewController wires the scene graph into a new machine.
func NewController(cfg Config, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	o := controllerOptions{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Controller{
		id:     uuid.New(),
		cfg:    cfg,
		logger: o.logger,
	}
	c.scene = newScene(cfg, o.logger.With("component", "scene"))
	machineOpts := []tickfsm.Option{
		tickfsm.WithLogger(o.logger.With("component", "machine")),
		tickfsm.WithUnhandledErrorMode(cfg.ErrorMode),
		tickfsm.WithTracer(o.tracer),
	}
	c.machine = tickfsm.New[StateID, Event](c.scene, machineOpts...)

	for _, factory := range o.factories {
		c.machine.RegisterStateFactory(factory)
	}
	c.machine.RegisterStateFactory(newState)
	c.machine.RegisterUnhandledErrorHandler(c.abort)
	if err := c.machine.Install(sceneGraph); err != nil {
		return nil, err
	}
	return c, nil
}

var sceneGraph = func() *tickfsm.Graph[StateID, Event] {
	b := tickfsm.NewGraphBuilder[StateID, Event]()
	b.Start(Initialization)
	b.Transition().From(Initialization).On(OnInitialized).To(DemoInitialization)
	b.Transition().From(DemoInitialization).On(OnDemoStarted).To(DemoStart)
	b.Transition().From(DemoStart).On(OnDemoFinished).To(DemoResult)
	b.Transition().From(DemoResult).On(OnNextDemoStarted).To(DemoInitialization)
	b.Transition().FromAny().On(OnAbort).To(Shutdown)
	return b.Build()
}()

// Machine returns the machine driving the scene.
func (c *Controller) Machine() *Machine {
	return c.machine
}

// Scene returns the scene.
func (c *Controller) Scene() *Scene {
	return c.scene
}

// Run ticks the machine every frame until it reaches Shutdown or ctx is done. Before every tick the events posted by
// background work are sent to the machine. Run waits for background work and closes the machine before returning,
// so a Controller runs at most once.
func (c *Controller) Run(ctx context.Context) (err error) {
	runCtx, cancel := context.WithCancel(ctx)
	work, workCtx := errgroup.WithContext(runCtx)
	c.scene.work, c.scene.workCtx = work, workCtx
	defer func() {
		cancel()
		err = errors.Join(err, work.Wait(), c.machine.Close())
	}()

	ctx = tickfsm.WithOwner(ctx, c.id)
	ticker := time.NewTicker(c.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		if err := c.tick(ctx); err != nil {
			return err
		}
		if c.machine.IsCurrentState(Shutdown) {
			return nil
		}
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "scene interrupted", slog.String("state", c.machine.CurrentStateName()))
			return nil
		case <-ticker.C:
		}
	}
}

func (c *Controller) tick(ctx context.Context) error {
	if c.machine.Running() {
		for drained := false; !drained; {
			select {
			case event := <-c.scene.inbox:
				accepted, err := c.machine.SendEvent(event)
				if err != nil {
					return err
				}
				if !accepted {
					c.logger.WarnContext(ctx, "event rejected", slog.String("event", event.String()), slog.String("state", c.machine.CurrentStateName()))
				}
			default:
				drained = true
			}
		}
	}
	return c.machine.Update(ctx)
}

// abort shuts the scene down on a hook failure. It reports false when the machine refuses to, so the failure
// surfaces from Update.
func (c *Controller) abort(ctx context.Context, err error) bool {
	c.logger.ErrorContext(ctx, "scene failure", slog.Any("error", err))
	accepted, sendErr := c.machine.SendEvent(OnAbort)
	return sendErr == nil && accepted
}
