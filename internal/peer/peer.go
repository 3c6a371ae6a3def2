// Package peer is the viewer side of the watcher's relay, meant to be
// embedded in the supervised program. It receives the relayed output of its
// own process and can ask the watcher to leave UI-only mode on the next
// relaunch.
package peer

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/MalekiRe/bevy-editor/internal/transport"
	"github.com/MalekiRe/bevy-editor/pkg/consts"
)

// Options configures how the peer dials the watcher.
type Options struct {
	MaxAttempts int
	LogAfter    int
	Interval    time.Duration
}

// DefaultOptions matches the watcher's default handshake budget.
func DefaultOptions() Options {
	return Options{
		MaxAttempts: consts.DefaultDialAttempts,
		LogAfter:    consts.DefaultDialLogAfter,
		Interval:    consts.DefaultRetryInterval,
	}
}

// Env is the launch environment the watcher gives its child.
type Env struct {
	TxPort int  // Control bytes are sent from here
	RxPort int  // Relayed output is received here
	OnlyUI bool // Launched in degraded mode
}

// EnvFromOS reads the launch environment of the current process.
func EnvFromOS() (Env, error) {
	return ParseEnv(os.LookupEnv)
}

// ParseEnv reads the launch environment through lookup.
func ParseEnv(lookup func(string) (string, bool)) (Env, error) {
	var env Env
	var err error
	if env.TxPort, err = portVar(lookup, consts.EnvTxPort); err != nil {
		return Env{}, err
	}
	if env.RxPort, err = portVar(lookup, consts.EnvRxPort); err != nil {
		return Env{}, err
	}
	_, env.OnlyUI = lookup(consts.EnvOnlyUI)
	return env, nil
}

func portVar(lookup func(string) (string, bool), name string) (int, error) {
	v, ok := lookup(name)
	if !ok {
		return 0, fmt.Errorf("peer: %s not set, not launched by the watcher", name)
	}
	port, err := strconv.Atoi(v)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("peer: %s=%q is not a port", name, v)
	}
	return port, nil
}

// Peer holds the two connections to the watcher.
type Peer struct {
	env     Env
	output  net.Conn
	control net.Conn

	sendMu sync.Mutex
}

// Connect dials the watcher's forward listener, then listens on the
// control port and accepts the watcher's back channel.
func Connect(ctx context.Context, env Env, opts Options) (*Peer, error) {
	connector := transport.NewConnector(opts.MaxAttempts, opts.LogAfter, opts.Interval)
	output, _, err := connector.Connect(ctx, env.RxPort)
	if err != nil {
		return nil, err
	}

	l, err := transport.Listen(env.TxPort)
	if err != nil {
		output.Close()
		return nil, err
	}
	control, err := l.Accept(ctx)
	if err != nil {
		output.Close()
		return nil, err
	}
	return &Peer{env: env, output: output, control: control}, nil
}

// Output is the relayed stdout/stderr stream of this process.
func (p *Peer) Output() io.Reader {
	return p.output
}

// OnlyUI reports whether this process was launched in degraded mode.
func (p *Peer) OnlyUI() bool {
	return p.env.OnlyUI
}

// SendControl writes one control byte to the watcher.
func (p *Peer) SendControl(b byte) error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	_, err := p.control.Write([]byte{b})
	return err
}

// ResumeNormal asks the watcher to relaunch in full mode next time.
func (p *Peer) ResumeNormal() error {
	return p.SendControl(consts.ControlResumeNormal)
}

// Close closes both connections.
func (p *Peer) Close() error {
	err := p.output.Close()
	if cerr := p.control.Close(); err == nil {
		err = cerr
	}
	return err
}

// Personal.AI order the ending
