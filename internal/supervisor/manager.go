package supervisor

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/MalekiRe/bevy-editor/internal/resource"
	"github.com/MalekiRe/bevy-editor/internal/stream"
	"github.com/MalekiRe/bevy-editor/pkg/consts"
	"github.com/MalekiRe/bevy-editor/pkg/errors"
	"github.com/MalekiRe/bevy-editor/pkg/logger"
)

// Mode selects how the child is launched.
type Mode int

const (
	ModeFull   Mode = iota
	ModeUIOnly      // Degraded relaunch after a faulty exit
)

func (m Mode) String() string {
	if m == ModeUIOnly {
		return "ui-only"
	}
	return "full"
}

// ModeFor maps the degraded-mode flag to a launch mode.
func ModeFor(degraded bool) Mode {
	if degraded {
		return ModeUIOnly
	}
	return ModeFull
}

// ProcessManager spawns the supervised development process.
type ProcessManager struct {
	command []string
	env     []string
	echo    io.Writer

	// DrainGrace bounds how long output is still read after the child is
	// reaped, for descendants that keep the pipes open. Zero means
	// consts.DefaultDrainGrace.
	DrainGrace time.Duration
}

// New creates a ProcessManager for command. env holds extra KEY=VALUE pairs
// appended to the watcher's own environment. Child output is echoed to echo
// when it is non-nil.
func New(command []string, env []string, echo io.Writer) *ProcessManager {
	return &ProcessManager{command: command, env: env, echo: echo}
}

// Spawn launches the child in dir with the cycle's ports injected. The port
// names are inverted for the child: the watcher's back port is the child's
// TX_PORT and the watcher's forward port is its RX_PORT.
func (pm *ProcessManager) Spawn(mode Mode, dir string, ports resource.PortPair) (*Child, error) {
	if len(pm.command) == 0 {
		return nil, errors.New(errors.ErrCodeSpawnFailed, "Spawn", "empty command", nil)
	}

	cmd := exec.Command(pm.command[0], pm.command[1:]...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), pm.env...)
	cmd.Env = append(cmd.Env, ChildEnv(mode, ports)...)
	// Own process group so shutdown can signal the whole tree
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// Plain pipes instead of StdoutPipe: Wait must not close the read ends,
	// so the exit is observed even while descendants still hold the write ends.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, errors.New(errors.ErrCodeSpawnFailed, "Spawn", "stdout pipe", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeFiles(stdoutR, stdoutW)
		return nil, errors.New(errors.ErrCodeSpawnFailed, "Spawn", "stderr pipe", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	logger.Log.Info("command created", "cmd", pm.command, "dir", dir, "mode", mode.String(), "ports", ports.String())
	err = cmd.Start()
	// The child owns the write ends now; ours would keep EOF from arriving.
	closeFiles(stdoutW, stderrW)
	if err != nil {
		closeFiles(stdoutR, stderrR)
		return nil, errors.New(errors.ErrCodeSpawnFailed, "Spawn", fmt.Sprintf("cannot start %s", pm.command[0]), err)
	}

	grace := pm.DrainGrace
	if grace <= 0 {
		grace = consts.DefaultDrainGrace
	}
	c := newChild(cmd, stream.Pump(pm.echo, stdoutR, stderrR), []*os.File{stdoutR, stderrR}, grace)
	logger.Log.Info("Supervisor: child started", "pid", c.Pid())
	return c, nil
}

func closeFiles(files ...*os.File) {
	for _, f := range files {
		f.Close()
	}
}

// ChildEnv returns the variables injected into a child launched in mode
// with ports.
func ChildEnv(mode Mode, ports resource.PortPair) []string {
	env := []string{
		consts.EnvTxPort + "=" + strconv.Itoa(ports.Back),
		consts.EnvRxPort + "=" + strconv.Itoa(ports.Forward),
	}
	if mode == ModeUIOnly {
		env = append(env, consts.EnvOnlyUI+"=true")
	}
	return env
}

// Personal.AI order the ending
