package consts

import "time"

// CycleState is the state of the relay loop inside one supervision cycle.
type CycleState string

const (
	StateRelaying              CycleState = "RELAYING"
	StateCheckingExit          CycleState = "CHECKING_EXIT"
	StateAwaitingControlSignal CycleState = "AWAITING_CONTROL_SIGNAL" // Child exited unclean, read one byte from viewer
	StateCycleDone             CycleState = "CYCLE_DONE"
)

// Environment handed to the supervised child. Names are from the child's
// point of view: it transmits control bytes on TX_PORT and receives the
// relayed output on RX_PORT.
const (
	EnvTxPort = "TX_PORT"
	EnvRxPort = "RX_PORT"
	EnvOnlyUI = "ONLY_UI" // Degraded mode marker
)

// ControlResumeNormal is the back channel byte that clears degraded mode.
const ControlResumeNormal byte = 1

// Defaults
const (
	DefaultPortMin       = 1026
	DefaultPortMax       = 10000
	DefaultDialAttempts  = 50
	DefaultDialLogAfter  = 10
	DefaultRetryInterval = 1 * time.Second
	DefaultPollInterval  = 50 * time.Millisecond
	DefaultDrainGrace    = 2 * time.Second
	DefaultLogLevel      = "info"
	DefaultChildLauncher = "dexterous_developer_cli"
	DefaultChildSubcmd   = "run"
	LoopbackHost         = "localhost"
)

// Personal.AI order the ending
