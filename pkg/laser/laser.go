// Package laser drives the robot's laser board over serial. A single firing
// worker owns the port; the rest of the robot asks it for shots through a
// Controller and reads back when it last fired and when it was last hit.
package laser

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Ngotcode/pixybattle/pkg/botlog"
)

var (
	// ErrAlreadyActive is returned by New while another Controller holds the
	// laser.
	ErrAlreadyActive = errors.New("a laser controller is already active")
	// ErrStoodDown is returned by Start once the Controller has been stood
	// down.
	ErrStoodDown = errors.New("laser controller has been stood down")
)

// active is set while a Controller owns the laser hardware.
var active atomic.Bool

// Config describes the laser's serial device and its firing rules.
type Config struct {
	Device   string
	BaudRate int
	// Cooldown is the minimum time between shots.
	Cooldown time.Duration
	// Recovery is how long the laser stays disabled after the robot is hit.
	Recovery          time.Duration
	PollInterval      time.Duration
	OpenRetryInterval time.Duration
}

// DefaultConfig is one shot a second and five seconds out after a hit.
func DefaultConfig() Config {
	return Config{
		Device:            "/dev/ttyACM0",
		BaudRate:          9600,
		Cooldown:          time.Second,
		Recovery:          5 * time.Second,
		PollInterval:      time.Millisecond,
		OpenRetryInterval: 10 * time.Second,
	}
}

// Controller is the handle on the laser. Only one may exist at a time.
//
// The fields shared with the worker are split by writer. The commanding side
// writes firing, standDown and requested; the worker writes lastFired,
// lastHit and served. Timestamps are nanoseconds since epoch, zero meaning
// "never".
type Controller struct {
	cfg    Config
	opener PortOpener
	log    zerolog.Logger
	epoch  time.Time

	// Commander-owned.
	firing    atomic.Bool
	standDown atomic.Bool
	requested atomic.Uint64

	// Worker-owned.
	lastFired atomic.Int64
	lastHit   atomic.Int64
	served    atomic.Uint64
	shots     atomic.Uint64

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	ready     chan struct{}
	quit      chan struct{}
	done      chan struct{}
}

// New claims the laser. It fails with ErrAlreadyActive if another Controller
// has not yet been stood down.
func New(cfg Config, opener PortOpener) (*Controller, error) {
	if !active.CompareAndSwap(false, true) {
		return nil, ErrAlreadyActive
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Millisecond
	}
	if cfg.OpenRetryInterval <= 0 {
		cfg.OpenRetryInterval = 10 * time.Second
	}
	if opener == nil {
		opener = OpenSerial
	}
	session := uuid.New()
	return &Controller{
		cfg:    cfg,
		opener: opener,
		log:    botlog.For("laser").With().Str("laserSession", session.String()).Logger(),
		epoch:  time.Now(),
		ready:  make(chan struct{}),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Start opens the serial device, retrying for as long as it takes, starts
// the firing worker and waits for it to report ready. It only fails if ctx
// ends or the controller is stood down first. Calling it again once the
// worker is ready returns straight away.
func (c *Controller) Start(ctx context.Context) error {
	if c.standDown.Load() {
		return ErrStoodDown
	}
	c.startOnce.Do(func() {
		c.started.Store(true)
		go c.loop(ctx, c.ready)
	})
	select {
	case <-c.ready:
		return nil
	case <-c.done:
		if c.standDown.Load() {
			return ErrStoodDown
		}
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FireOnce asks for exactly one shot and waits for the worker to fire it.
// While the laser is cooling down or disabled by a hit the shot is held back,
// not dropped. A zero timeout waits forever. It reports whether the shot was
// fired in time; a shot that times out is still fired when the laser allows.
func (c *Controller) FireOnce(timeout time.Duration) bool {
	if c.standDown.Load() {
		return false
	}
	ticket := c.requested.Add(1)
	c.log.Debug().Uint64("ticket", ticket).Msg("Fire once")
	return c.waitServed(ticket, timeout)
}

// FireMultiple fires n single shots in turn. It carries on after a failed
// shot.
func (c *Controller) FireMultiple(n int, timeoutPerShot time.Duration) []bool {
	results := make([]bool, n)
	for i := range results {
		results[i] = c.FireOnce(timeoutPerShot)
	}
	return results
}

// FireAtWill switches on continuous fire: the worker fires whenever the
// cooldown allows until HoldFire. With block set it first waits for one shot,
// as FireOnce does, and returns whether that shot fired; otherwise it returns
// true straight away.
func (c *Controller) FireAtWill(block bool, timeout time.Duration) bool {
	if c.standDown.Load() {
		return false
	}
	ok := true
	if block {
		ok = c.FireOnce(timeout)
	}
	if !c.firing.Swap(true) {
		c.log.Info().Msg("Fire at will")
	}
	return ok
}

// HoldFire switches off continuous fire. Outstanding single shots still fire.
func (c *Controller) HoldFire() {
	if c.firing.Swap(false) {
		c.log.Info().Msg("Hold fire")
	}
}

// StandDown stops the worker, waits for it to exit and releases the laser
// so that a new Controller can be created. Safe to call more than once.
func (c *Controller) StandDown() {
	c.stopOnce.Do(func() {
		c.log.Info().Msg("Standing down")
		c.firing.Store(false)
		c.standDown.Store(true)
		close(c.quit)
		if c.started.Load() {
			<-c.done
		}
		active.Store(false)
		c.log.Info().Uint64("shots", c.shots.Load()).Msg("Stood down")
	})
}

// WithController creates and starts a Controller, runs fn with it and always
// stands it down afterwards.
func WithController(ctx context.Context, cfg Config, opener PortOpener, fn func(*Controller) error) error {
	c, err := New(cfg, opener)
	if err != nil {
		return err
	}
	defer c.StandDown()
	if err := c.Start(ctx); err != nil {
		return err
	}
	return fn(c)
}

// LastFired returns when the laser last fired, or the zero time.
func (c *Controller) LastFired() time.Time {
	return c.toTime(c.lastFired.Load())
}

// LastHit returns when the robot was last hit, or the zero time.
func (c *Controller) LastHit() time.Time {
	return c.toTime(c.lastHit.Load())
}

func (c *Controller) Firing() bool {
	return c.firing.Load()
}

func (c *Controller) StoodDown() bool {
	return c.standDown.Load()
}

// Disabled reports whether the robot is still inside its recovery window.
func (c *Controller) Disabled() bool {
	hit := c.lastHit.Load()
	return hit != 0 && c.since(hit) < c.cfg.Recovery
}

func (c *Controller) ShotsFired() uint64 {
	return c.shots.Load()
}

func (c *Controller) Config() Config {
	return c.cfg
}

func (c *Controller) waitServed(ticket uint64, timeout time.Duration) bool {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	poll := time.NewTicker(c.cfg.PollInterval)
	defer poll.Stop()
	for {
		if c.served.Load() >= ticket {
			return true
		}
		select {
		case <-poll.C:
		case <-deadline:
			served := c.served.Load() >= ticket
			if !served {
				c.log.Debug().Uint64("ticket", ticket).Msg("Timed out waiting for shot")
			}
			return served
		case <-c.done:
			return c.served.Load() >= ticket
		case <-c.quit:
			return c.served.Load() >= ticket
		}
	}
}

func (c *Controller) now() int64 {
	// Never zero, that means unset.
	return max(int64(time.Since(c.epoch)), 1)
}

func (c *Controller) since(stamp int64) time.Duration {
	return time.Duration(c.now() - stamp)
}

func (c *Controller) toTime(stamp int64) time.Time {
	if stamp == 0 {
		return time.Time{}
	}
	return c.epoch.Add(time.Duration(stamp))
}
