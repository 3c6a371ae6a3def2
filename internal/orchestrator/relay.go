package orchestrator

import (
	"context"
	"io"
	"net"
	"os"
	"time"

	"github.com/MalekiRe/bevy-editor/internal/monitor"
	"github.com/MalekiRe/bevy-editor/internal/stream"
	"github.com/MalekiRe/bevy-editor/internal/supervisor"
	"github.com/MalekiRe/bevy-editor/internal/transport"
	"github.com/MalekiRe/bevy-editor/pkg/consts"
	"github.com/MalekiRe/bevy-editor/pkg/fsm"
	"github.com/MalekiRe/bevy-editor/pkg/logger"
)

// Outcome is how a supervision cycle ended.
type Outcome int

const (
	OutcomeClean   Outcome = iota // Child exited successfully, the watcher stops
	OutcomeUnclean                // Child failed, a new cycle starts
)

func (o Outcome) String() string {
	if o == OutcomeClean {
		return "clean"
	}
	return "unclean"
}

// Child is the part of a supervised process the relay loop needs.
type Child interface {
	Output() *stream.ByteChannel
	TryStatus() supervisor.ExitClassification
	Done() <-chan struct{}
}

const (
	evDrained    fsm.Event = "drained"
	evRunning    fsm.Event = "running"
	evExitClean  fsm.Event = "exit_clean"
	evExitFaulty fsm.Event = "exit_faulty"
	evControl    fsm.Event = "control"
)

// RelayLoop drives one cycle: it forwards the child's output to the viewer,
// watches for the child's exit and, after a faulty exit, reads one control
// byte from the back channel.
type RelayLoop struct {
	fsm     *fsm.StateMachine
	child   Child
	forward io.Writer // nil when the viewer never connected
	back    net.Conn  // nil when the back channel was never opened
	poll    time.Duration
	log     logger.Logger

	degraded      bool
	outcome       Outcome
	forwardFailed bool
}

// NewRelayLoop prepares a loop for child. forward and back may be nil if
// the child exited before the corresponding connection was established.
func NewRelayLoop(child Child, forward io.Writer, back net.Conn, poll time.Duration, log logger.Logger) *RelayLoop {
	if log == nil {
		log = logger.Log
	}
	if poll <= 0 {
		poll = consts.DefaultPollInterval
	}
	l := &RelayLoop{
		fsm:     fsm.New(fsm.State(consts.StateRelaying)),
		child:   child,
		forward: forward,
		back:    back,
		poll:    poll,
		log:     log,
	}
	l.setupFSM()
	return l
}

func (l *RelayLoop) setupFSM() {
	relaying := fsm.State(consts.StateRelaying)
	checking := fsm.State(consts.StateCheckingExit)
	awaiting := fsm.State(consts.StateAwaitingControlSignal)
	done := fsm.State(consts.StateCycleDone)

	l.fsm.AddTransition(relaying, checking, evDrained, nil)
	l.fsm.AddTransition(checking, relaying, evRunning, nil)
	l.fsm.AddTransition(checking, done, evExitClean, l.onCleanExit)
	l.fsm.AddTransition(checking, awaiting, evExitFaulty, l.onFaultyExit)
	l.fsm.AddTransition(awaiting, done, evControl, l.onControl)
}

// State returns the loop's current state.
func (l *RelayLoop) State() consts.CycleState {
	return consts.CycleState(l.fsm.Current())
}

// Run executes the loop until the cycle is done. degraded is the flag
// carried in from the previous cycle; the returned flag is the one the next
// cycle must launch with. A cancelled ctx aborts the loop with ctx.Err().
func (l *RelayLoop) Run(ctx context.Context, degraded bool) (Outcome, bool, error) {
	l.degraded = degraded
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	if c, ok := l.forward.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { c.Close() })
		defer stop()
	}

	done := fsm.State(consts.StateCycleDone)
	for !l.fsm.Is(done) {
		if err := ctx.Err(); err != nil {
			return l.outcome, l.degraded, err
		}
		switch l.State() {
		case consts.StateRelaying:
			l.relay()
			l.fire(evDrained)

		case consts.StateCheckingExit:
			status := l.child.TryStatus()
			if status == supervisor.Running || !l.child.Output().Finished() {
				// Done stays closed after the reap, so while draining only new
				// bytes or the tick wake the loop.
				exited := l.child.Done()
				if status != supervisor.Running {
					exited = nil
				}
				select {
				case <-ctx.Done():
					return l.outcome, l.degraded, ctx.Err()
				case <-l.child.Output().Ready():
				case <-exited:
				case <-ticker.C:
				}
				l.fire(evRunning)
				continue
			}
			if status == supervisor.CleanExit {
				l.fire(evExitClean)
			} else {
				l.fire(evExitFaulty)
			}

		case consts.StateAwaitingControlSignal:
			b, ok, err := l.awaitControl(ctx)
			if err != nil {
				return l.outcome, l.degraded, err
			}
			l.fire(evControl, b, ok)
		}
	}
	return l.outcome, l.degraded, nil
}

// relay moves everything queued to the forward connection. Writes on a
// connection are bounded by the poll interval; on a write error or timeout
// the rest of this batch is dropped and the loop carries on.
func (l *RelayLoop) relay() {
	data := l.child.Output().TryDrain()
	if len(data) == 0 || l.forward == nil {
		return
	}
	if d, ok := l.forward.(interface{ SetWriteDeadline(time.Time) error }); ok {
		d.SetWriteDeadline(time.Now().Add(l.poll))
	}
	n, err := l.forward.Write(data)
	monitor.RelayedBytes.Add(float64(n))
	if err != nil {
		monitor.ForwardWriteFailures.Inc()
		if !l.forwardFailed {
			switch {
			case transport.IsExpectedClose(err):
				l.log.Debug("Relay: viewer went away", "err", err)
			case os.IsTimeout(err):
				l.log.Warn("Relay: viewer not reading, dropping output", "dropped", len(data)-n)
			default:
				l.log.Warn("Relay: forward write failed", "err", err)
			}
		}
		l.forwardFailed = true
	}
}

// awaitControl blocks for one back channel byte. ok is false when there is
// no back channel or the read failed.
func (l *RelayLoop) awaitControl(ctx context.Context) (byte, bool, error) {
	if l.back == nil {
		l.log.Info("Relay: no back channel, restarting without control byte")
		return 0, false, nil
	}
	b, err := transport.ReadControl(ctx, l.back)
	if err != nil {
		if ctx.Err() != nil {
			return 0, false, ctx.Err()
		}
		if transport.IsExpectedClose(err) {
			l.log.Info("Relay: back channel closed without control byte")
		} else {
			l.log.Warn("Relay: control read failed", "err", err)
		}
		return 0, false, nil
	}
	return b, true, nil
}

func (l *RelayLoop) fire(event fsm.Event, args ...interface{}) {
	if err := l.fsm.Fire(event, args...); err != nil {
		// Transitions are fixed at construction; this is a programming error.
		panic(err)
	}
}

func (l *RelayLoop) onCleanExit(event fsm.Event, args ...interface{}) error {
	l.log.Info("Relay: child exited cleanly")
	l.outcome = OutcomeClean
	return nil
}

func (l *RelayLoop) onFaultyExit(event fsm.Event, args ...interface{}) error {
	l.log.Warn("Relay: child exited unclean, entering ui-only mode")
	l.degraded = true
	l.outcome = OutcomeUnclean
	return nil
}

func (l *RelayLoop) onControl(event fsm.Event, args ...interface{}) error {
	b, _ := args[0].(byte)
	ok, _ := args[1].(bool)
	switch {
	case !ok:
	case b == consts.ControlResumeNormal:
		l.log.Info("Relay: viewer requested normal mode")
		l.degraded = false
	default:
		l.log.Info("Relay: ignoring unknown control byte", "byte", b)
	}
	return nil
}

// Personal.AI order the ending
