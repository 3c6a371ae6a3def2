package supervisor

import (
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/MalekiRe/bevy-editor/internal/stream"
	"github.com/MalekiRe/bevy-editor/pkg/logger"
	"golang.org/x/sys/unix"
)

// ExitClassification is the observed outcome of a child process.
type ExitClassification int32

const (
	Running ExitClassification = iota
	CleanExit
	FaultyExit
)

func (e ExitClassification) String() string {
	switch e {
	case Running:
		return "running"
	case CleanExit:
		return "clean"
	case FaultyExit:
		return "faulty"
	}
	return "unknown"
}

// Classify maps the result of exec.Cmd.Wait to an exit classification.
func Classify(waitErr error) ExitClassification {
	if waitErr == nil {
		return CleanExit
	}
	return FaultyExit
}

// Child is one spawned development process and its merged output.
type Child struct {
	cmd    *exec.Cmd
	output *stream.ByteChannel
	pipes  []*os.File // read ends feeding output
	grace  time.Duration

	status   atomic.Int32
	exitCode atomic.Int32
	exitErr  error
	mu       sync.RWMutex
	done     chan struct{}
}

func newChild(cmd *exec.Cmd, output *stream.ByteChannel, pipes []*os.File, grace time.Duration) *Child {
	c := &Child{
		cmd:    cmd,
		output: output,
		pipes:  pipes,
		grace:  grace,
		done:   make(chan struct{}),
	}
	c.exitCode.Store(-1)
	go c.waitLoop()
	return c
}

// waitLoop reaps the child as soon as it exits, then gives the pumps up to
// grace to reach EOF before closing the pipes under them. Descendants that
// inherited the write ends cannot hold the cycle open past that.
func (c *Child) waitLoop() {
	err := c.cmd.Wait()

	c.mu.Lock()
	c.exitErr = err
	c.mu.Unlock()

	code := 0
	if err != nil {
		code = -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		}
	}
	c.exitCode.Store(int32(code))
	c.status.Store(int32(Classify(err)))

	logger.Log.Info("Supervisor: child exited", "pid", c.Pid(), "code", code, "status", Classify(err).String())
	close(c.done)

	select {
	case <-c.output.ProducersDone():
	case <-time.After(c.grace):
		logger.Log.Warn("Supervisor: output still held open after exit, closing pipes", "pid", c.Pid(), "grace", c.grace.String())
	}
	for _, f := range c.pipes {
		f.Close()
	}
}

// Output returns the merged stdout/stderr channel.
func (c *Child) Output() *stream.ByteChannel {
	return c.output
}

// TryStatus reports the exit classification without blocking.
func (c *Child) TryStatus() ExitClassification {
	return ExitClassification(c.status.Load())
}

// Done is closed once the child has been reaped. Output may still be
// draining; see ByteChannel.Finished.
func (c *Child) Done() <-chan struct{} {
	return c.done
}

// ExitCode returns the exit code, or -1 while running or when killed by a signal.
func (c *Child) ExitCode() int {
	return int(c.exitCode.Load())
}

// ExitError returns the error from Wait, nil for a clean exit or while running.
func (c *Child) ExitError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.exitErr
}

// Pid returns the child's process id.
func (c *Child) Pid() int {
	if c.cmd.Process == nil {
		return -1
	}
	return c.cmd.Process.Pid
}

// Stop sends SIGTERM to the child's process group.
func (c *Child) Stop() error {
	return c.signalGroup(unix.SIGTERM)
}

// Kill sends SIGKILL to the child's process group.
func (c *Child) Kill() error {
	return c.signalGroup(unix.SIGKILL)
}

func (c *Child) signalGroup(sig syscall.Signal) error {
	select {
	case <-c.done:
		return nil
	default:
	}
	pid := c.Pid()
	if pid <= 0 {
		return nil
	}
	logger.Log.Info("Supervisor: signalling child group", "pid", pid, "signal", sig.String())
	if err := unix.Kill(-pid, sig); err != nil && err != unix.ESRCH {
		return err
	}
	return nil
}

// Personal.AI order the ending
