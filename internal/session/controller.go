// internal/session/controller.go
package session

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/tamzrod/ble-fixture/internal/buttons"
	"github.com/tamzrod/ble-fixture/internal/ledger"
	"github.com/tamzrod/ble-fixture/internal/serialno"
	"github.com/tamzrod/ble-fixture/internal/transport"
)

// Config is the station setup a controller runs with.
// Values are expected to be validated already.
type Config struct {
	Variant Variant

	// DeviceName is the advertised name units must carry.
	DeviceName string
	MinRSSI    int

	ScanTimeout    time.Duration
	ConnectTimeout time.Duration
	PressWindow    time.Duration
	// SettleDelay is waited between an EEPROM write and its read-back.
	SettleDelay time.Duration

	HWVersion    int
	Batch        int
	Producer     int
	Manufacturer string
	SWTesting    string

	// LogFailures appends ERR rows for failed identity sessions.
	LogFailures bool
}

// Ledger receives report rows.
type Ledger interface {
	Append(ledger.Row) error
}

// IdentityCounter hands out identity values for programming.
type IdentityCounter interface {
	Current() int
	Advance() (int, error)
}

// Hooks feed the operator surface. Both may be nil. OnButtons runs on a
// transport goroutine.
type Hooks struct {
	OnPhase   func(Phase)
	OnButtons func(buttons.Flags)
}

// Deps are the collaborators of a controller.
type Deps struct {
	Transport transport.Transport
	Ledger    Ledger
	Counter   IdentityCounter
	Log       zerolog.Logger
	Hooks     Hooks
	Now       func() time.Time
}

// Result is the outcome of one session.
type Result struct {
	SessionID string
	Variant   Variant

	// Phase is Done or Failed.
	Phase  Phase
	Reason Reason
	Err    error

	Serial   string
	Address  string
	Firmware string
	Buttons  buttons.Flags

	// AntID, Batch and Producer as programmed or read from the unit.
	AntID    int
	Batch    int
	Producer int

	Started  time.Time
	Duration time.Duration

	// ReportErr and PowerDownErr never change the outcome.
	ReportErr    error
	PowerDownErr error
}

// Passed reports a PASS outcome.
func (r Result) Passed() bool {
	return r.Phase == PhaseDone
}

// Controller runs test sessions, one at a time.
type Controller struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger

	mu     sync.Mutex
	active bool
}

// New checks that the variant has what it needs.
func New(cfg Config, deps Deps) (*Controller, error) {
	if cfg.Variant == VariantIdentity {
		if deps.Counter == nil {
			return nil, ErrMissingCounter
		}
		if deps.Ledger == nil {
			return nil, ErrMissingLedger
		}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Controller{
		cfg:  cfg,
		deps: deps,
		log:  deps.Log.With().Str("component", "session").Logger(),
	}, nil
}

// Config returns the controller's station setup.
func (c *Controller) Config() Config { return c.cfg }

// Run executes one session. id must be a validated serial for the
// identity variant and is ignored otherwise.
func (c *Controller) Run(ctx context.Context, id *serialno.Identifier) Result {
	if !c.acquire() {
		return Result{
			Variant: c.cfg.Variant,
			Phase:   PhaseFailed,
			Reason:  ReasonAborted,
			Err:     &Error{Phase: PhaseIdle, Reason: ReasonAborted, Err: ErrSessionActive},
		}
	}
	defer c.release()

	sid := ulid.Make().String()
	r := &run{
		cfg:   c.cfg,
		deps:  c.deps,
		id:    id,
		log:   c.log.With().Str("session", sid).Logger(),
		phase: PhaseIdle,
		res: Result{
			SessionID: sid,
			Variant:   c.cfg.Variant,
			Started:   c.deps.Now(),
		},
	}
	if id != nil {
		r.res.Serial = id.Raw
	}

	r.finish(r.execute(ctx))
	return r.res
}

func (c *Controller) acquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return false
	}
	c.active = true
	return true
}

func (c *Controller) release() {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
}
