package orchestrator

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/MalekiRe/bevy-editor/internal/monitor"
	"github.com/MalekiRe/bevy-editor/internal/resource"
	"github.com/MalekiRe/bevy-editor/internal/supervisor"
	"github.com/MalekiRe/bevy-editor/internal/transport"
	"github.com/MalekiRe/bevy-editor/pkg/logger"
	"github.com/MalekiRe/bevy-editor/pkg/protocol"
	"github.com/google/uuid"
)

// stopGrace is how long shutdown waits for the child after SIGTERM before SIGKILL.
const stopGrace = 5 * time.Second

// CycleReport describes a finished supervision cycle.
type CycleReport struct {
	ID       string
	Ports    resource.PortPair
	Mode     supervisor.Mode
	Outcome  Outcome
	Degraded bool // Flag the next cycle launches with
}

// Engine runs supervision cycles for one project directory until the child
// exits cleanly.
type Engine struct {
	dir    string
	cfg    atomic.Pointer[protocol.Config]
	stdout io.Writer

	// degraded is carried between cycles and only touched by Run's goroutine.
	degraded bool

	// OnCycle, when set, is called after every cycle.
	OnCycle func(CycleReport)
}

func NewEngine(cfg *protocol.Config, dir string) *Engine {
	e := &Engine{dir: dir, stdout: os.Stdout}
	e.cfg.Store(cfg)
	return e
}

// UpdateConfig swaps the config used from the next cycle on.
func (e *Engine) UpdateConfig(cfg *protocol.Config) {
	e.cfg.Store(cfg)
}

// Config returns the config the next cycle will use.
func (e *Engine) Config() *protocol.Config {
	return e.cfg.Load()
}

// SetStdout changes where child output is echoed.
func (e *Engine) SetStdout(w io.Writer) {
	e.stdout = w
}

// Degraded reports the flag the next cycle launches with. Only meaningful
// while Run is not executing.
func (e *Engine) Degraded() bool {
	return e.degraded
}

// Run supervises the child until it exits cleanly, a fatal error occurs or
// ctx is cancelled. Cancellation stops the child and returns nil.
func (e *Engine) Run(ctx context.Context) error {
	for {
		outcome, err := e.RunCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Log.Info("Engine: shutdown complete")
				return nil
			}
			return err
		}
		if outcome == OutcomeClean {
			logger.Log.Info("Engine: child exited cleanly, watcher done")
			return nil
		}
		monitor.RestartTotal.WithLabelValues(monitor.ReasonFaultyExit).Inc()
	}
}

// RunCycle performs one spawn, relay and classify iteration.
func (e *Engine) RunCycle(ctx context.Context) (Outcome, error) {
	cfg := e.cfg.Load()
	id := uuid.New().String()
	log := logger.Log.With("cycle", id)
	mode := supervisor.ModeFor(e.degraded)
	monitor.CyclesTotal.Inc()
	monitor.SetDegraded(e.degraded)

	ports, err := resource.NewPortBroker(cfg.Ports.Min, cfg.Ports.Max).PickTwoFreePorts()
	if err != nil {
		return OutcomeUnclean, err
	}
	log.Info("Cycle: starting", "mode", mode.String(), "forward", ports.Forward, "back", ports.Back)

	listener, err := transport.Listen(ports.Forward)
	if err != nil {
		return OutcomeUnclean, err
	}

	var echo io.Writer
	if cfg.EchoEnabled() {
		echo = e.stdout
	}
	child, err := supervisor.New(cfg.Child.Command, cfg.Child.Env, echo).Spawn(mode, e.dir, ports)
	if err != nil {
		listener.Close()
		return OutcomeUnclean, err
	}
	forward, back, err := e.handshake(ctx, cfg, listener, child, ports, log)
	if err != nil {
		e.stopChild(child)
		return OutcomeUnclean, err
	}
	defer closeConn(forward)
	defer closeConn(back)

	var forwardWriter io.Writer
	if forward != nil {
		forwardWriter = forward
	}
	loop := NewRelayLoop(child, forwardWriter, back, cfg.PollInterval(), log)
	outcome, degraded, err := loop.Run(ctx, e.degraded)
	if err != nil {
		e.stopChild(child)
		return outcome, err
	}
	e.degraded = degraded
	monitor.SetDegraded(degraded)
	log.Info("Cycle: done", "outcome", outcome.String(), "next_mode", supervisor.ModeFor(degraded).String())

	if e.OnCycle != nil {
		e.OnCycle(CycleReport{ID: id, Ports: ports, Mode: mode, Outcome: outcome, Degraded: degraded})
	}
	return outcome, nil
}

// handshake accepts the viewer on the forward port, then dials its back
// channel. If the child exits first, the missing connections are returned
// as nil and the cycle goes straight to classification.
func (e *Engine) handshake(ctx context.Context, cfg *protocol.Config, listener *transport.Listener,
	child *supervisor.Child, ports resource.PortPair, log logger.Logger) (net.Conn, net.Conn, error) {

	hsCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-child.Done():
			cancel()
		case <-hsCtx.Done():
		}
	}()

	childGone := func(err error) bool {
		return ctx.Err() == nil && errors.Is(err, context.Canceled)
	}

	forward, err := listener.Accept(hsCtx)
	if err != nil {
		if childGone(err) {
			log.Warn("Handshake: child exited before the viewer connected")
			return nil, nil, nil
		}
		return nil, nil, err
	}

	connector := transport.NewConnector(cfg.Handshake.MaxAttempts, cfg.DialLogAfter(), cfg.RetryInterval())
	back, attempts, err := connector.Connect(hsCtx, ports.Back)
	monitor.HandshakeAttempts.Observe(float64(attempts))
	if err != nil {
		if childGone(err) {
			log.Warn("Handshake: child exited before the back channel opened")
			return forward, nil, nil
		}
		forward.Close()
		return nil, nil, err
	}
	return forward, back, nil
}

// stopChild terminates the child's process group and waits for it to be reaped.
func (e *Engine) stopChild(c *supervisor.Child) {
	if err := c.Stop(); err != nil {
		logger.Log.Warn("Engine: SIGTERM failed", "err", err)
	}
	select {
	case <-c.Done():
		return
	case <-time.After(stopGrace):
	}
	logger.Log.Warn("Engine: child ignored SIGTERM, killing", "pid", c.Pid())
	c.Kill()
	<-c.Done()
}

func closeConn(c net.Conn) {
	if c != nil {
		c.Close()
	}
}

// Personal.AI order the ending
