package resource

import (
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/MalekiRe/bevy-editor/pkg/errors"
	"github.com/MalekiRe/bevy-editor/pkg/logger"
)

// PortPair holds the two loopback ports owned by one supervision cycle,
// named from the watcher's side.
type PortPair struct {
	// Forward carries child output from the watcher to the viewer. The watcher listens on it.
	Forward int
	// Back carries the control byte from the viewer to the watcher. The watcher dials it.
	Back int
}

func (p PortPair) String() string {
	return fmt.Sprintf("forward=%d back=%d", p.Forward, p.Back)
}

// PortBroker hands out free TCP ports from a half-open range.
type PortBroker struct {
	mu    sync.Mutex
	min   int
	max   int
	rng   *rand.Rand
	probe func(port int) bool
}

// NewPortBroker creates a broker drawing from [min, max).
func NewPortBroker(min, max int) *PortBroker {
	return &PortBroker{
		min:   min,
		max:   max,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		probe: portFree,
	}
}

// PickTwoFreePorts selects two distinct unused ports.
func (b *PortBroker) PickTwoFreePorts() (PortPair, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	forward, err := b.pick(-1)
	if err != nil {
		return PortPair{}, err
	}
	back, err := b.pick(forward)
	if err != nil {
		return PortPair{}, err
	}
	logger.Log.Debug("Ports: picked pair", "forward", forward, "back", back)
	return PortPair{Forward: forward, Back: back}, nil
}

// pick scans the range from a random offset, wrapping once, and returns the
// first port that is free and not equal to exclude.
func (b *PortBroker) pick(exclude int) (int, error) {
	size := b.max - b.min
	if size <= 0 {
		return 0, errors.New(errors.ErrCodeNoFreePort, "PickPort",
			fmt.Sprintf("empty port range [%d, %d)", b.min, b.max), nil)
	}
	start := b.rng.Intn(size)
	for i := 0; i < size; i++ {
		port := b.min + (start+i)%size
		if port == exclude {
			continue
		}
		if b.probe(port) {
			return port, nil
		}
	}
	return 0, errors.New(errors.ErrCodeNoFreePort, "PickPort",
		fmt.Sprintf("no free tcp port in [%d, %d)", b.min, b.max), nil)
}

// portFree reports whether a loopback listener can be bound on port.
func portFree(port int) bool {
	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	l.Close()
	return true
}

// Personal.AI order the ending
