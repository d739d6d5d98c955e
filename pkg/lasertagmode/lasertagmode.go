// Package lasertagmode is the autonomous battle mode: find a target with the
// camera, chase it, shoot it when it is lined up, and sit out the recovery
// period after being hit.
package lasertagmode

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ngotcode/pixybattle/pkg/battlelog"
	"github.com/Ngotcode/pixybattle/pkg/botlog"
	"github.com/Ngotcode/pixybattle/pkg/drive"
	"github.com/Ngotcode/pixybattle/pkg/motors"
	"github.com/Ngotcode/pixybattle/pkg/pixy"
	"github.com/Ngotcode/pixybattle/pkg/screen"
	"github.com/Ngotcode/pixybattle/pkg/servoloop"
	"github.com/Ngotcode/pixybattle/pkg/sound"
	"github.com/Ngotcode/pixybattle/pkg/tunable"
	"github.com/Ngotcode/pixybattle/pkg/vision"
)

type Phase int32

const (
	Searching Phase = iota
	Chasing
	Roaming
	Killed
)

func (p Phase) String() string {
	switch p {
	case Searching:
		return "SEARCHING"
	case Chasing:
		return "CHASING"
	case Roaming:
		return "ROAMING"
	case Killed:
		return "KILLED"
	}
	return fmt.Sprintf("Phase(%d)", int32(p))
}

type Config struct {
	FPS int
	// TargetSignature is the Pixy colour signature of the enemy's marker.
	TargetSignature     int
	SimilarityThreshold float64
	// LostTimeout is how long a target may go unseen before we give up on it.
	LostTimeout time.Duration

	PanPGain, PanDGain         int
	HeadingPGain, HeadingDGain float64

	// FireTolerance is how far, in pixels, the target's centre may be from
	// the image centre for us to fire.
	FireTolerance int
	// AimTolerance is how far, in servo units, the camera may be panned away
	// from straight ahead for us to fire. The laser points where the
	// chassis points.
	AimTolerance int

	ScanSettle time.Duration

	// Roaming spins on the spot then drives forward, each for a random time
	// between half and all of its maximum.
	RoamSpeed      int
	RoamSpinMax    time.Duration
	RoamForwardMax time.Duration

	// Seed seeds the roaming randomness; zero picks one from the clock.
	Seed uint64

	Mixer    drive.Mixer
	Approach drive.Approach
}

func DefaultConfig() Config {
	return Config{
		FPS:                 50,
		TargetSignature:     1,
		SimilarityThreshold: vision.DefaultThreshold,
		LostTimeout:         500 * time.Millisecond,
		PanPGain:            300,
		PanDGain:            500,
		HeadingPGain:        0.5,
		HeadingDGain:        0,
		FireTolerance:       40,
		AimTolerance:        100,
		ScanSettle:          300 * time.Millisecond,
		RoamSpeed:           200,
		RoamSpinMax:         1500 * time.Millisecond,
		RoamForwardMax:      2 * time.Second,
		Mixer:               drive.NewMixer(),
		Approach:            drive.DefaultApproach(),
	}
}

// Weapon is the part of the laser controller the mode drives.
type Weapon interface {
	FireAtWill(block bool, timeout time.Duration) bool
	HoldFire()
	Disabled() bool
	LastHit() time.Time
	ShotsFired() uint64
}

type Recorder interface {
	Record(kind battlelog.Kind, detail string) error
}

type SceneSaver interface {
	Save(name string, scene vision.Scene) error
}

type Sounds interface {
	Play(name string)
}

type LaserTagMode struct {
	cam    pixy.Interface
	weapon Weapon
	motors motors.Interface

	// Optional sinks; New fills them with ones that do nothing.
	Events Recorder
	Scenes SceneSaver
	Sounds Sounds

	cancel context.CancelFunc
	stopWG sync.WaitGroup
	log    zerolog.Logger

	phase atomic.Int32

	// Aim tolerances start from the config and can be nudged from the remote.
	tunables      tunable.Tunables
	fireTolerance *tunable.Tunable
	aimTolerance  *tunable.Tunable

	// Loop state, only touched by the loop goroutine.
	pan       *servoloop.Loop
	heading   drive.Heading
	rng       *rand.Rand
	lastStep  time.Time
	lastFrame time.Time
	lastSeen  time.Time
	lastHit   time.Time
	hits      int
	shots     uint64
	prevScene vision.Scene
	targets   int
	spinDir   int
	spinUntil time.Time
	roamUntil time.Time

	config Config
}

func New(cfg Config, cam pixy.Interface, weapon Weapon, mot motors.Interface) *LaserTagMode {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	m := &LaserTagMode{
		cam:    cam,
		weapon: weapon,
		motors: mot,
		Events: nopRecorder{},
		Scenes: nopSaver{},
		Sounds: nopSounds{},
		log:    botlog.For("lasertag"),
		pan:    servoloop.New(cfg.PanPGain, cfg.PanDGain),
		heading: drive.Heading{
			PGain:  cfg.HeadingPGain,
			DGain:  cfg.HeadingDGain,
			Center: servoloop.CenterPos,
		},
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		lastHit: weapon.LastHit(),
		config:  cfg,
	}
	m.fireTolerance = m.tunables.Create("fire tolerance", cfg.FireTolerance)
	m.aimTolerance = m.tunables.Create("aim tolerance", cfg.AimTolerance)
	return m
}

// Tunables returns the settings the remote may adjust.
func (m *LaserTagMode) Tunables() *tunable.Tunables {
	return &m.tunables
}

func (m *LaserTagMode) Name() string {
	return "Laser tag mode"
}

func (m *LaserTagMode) Phase() Phase {
	return Phase(m.phase.Load())
}

func (m *LaserTagMode) Start(ctx context.Context) {
	m.stopWG.Add(1)
	var loopCtx context.Context
	loopCtx, m.cancel = context.WithCancel(ctx)
	go m.loop(loopCtx)
}

func (m *LaserTagMode) Stop() {
	m.cancel()
	m.stopWG.Wait()
}

func (m *LaserTagMode) loop(ctx context.Context) {
	defer m.stopWG.Done()
	defer m.halt()

	if err := m.cam.SetPan(servoloop.CenterPos); err != nil {
		m.log.Error().Err(err).Msg("Failed to centre camera")
	}
	m.Sounds.Play(sound.Ready)
	m.enter(Searching)
	m.lastStep = time.Now()

	fps := m.config.FPS
	if fps <= 0 {
		fps = 50
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := m.step(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.Warn().Err(err).Stringer("phase", m.Phase()).Msg("Step failed")
		}
	}
}

func (m *LaserTagMode) halt() {
	m.weapon.HoldFire()
	m.stopMotors()
	m.log.Info().Int("hits", m.hits).Uint64("shots", m.weapon.ShotsFired()).Msg("Laser tag mode stopped")
}

// step runs one tick of the state machine.
func (m *LaserTagMode) step(ctx context.Context) error {
	now := time.Now()
	dt := now.Sub(m.lastStep).Seconds()
	m.lastStep = now
	defer m.publishStatus()

	m.checkHit()

	switch m.Phase() {
	case Killed:
		if !m.weapon.Disabled() {
			m.log.Info().Msg("Recovered from hit")
			m.enter(Searching)
		}
		return nil
	case Searching:
		return m.search(ctx, now)
	case Roaming:
		return m.roam(ctx, now)
	case Chasing:
		return m.chase(ctx, now, dt)
	}
	return nil
}

func (m *LaserTagMode) checkHit() {
	hit := m.weapon.LastHit()
	if !hit.After(m.lastHit) {
		return
	}
	m.lastHit = hit
	m.hits++
	m.log.Warn().Int("hits", m.hits).Msg("We've been hit")
	m.weapon.HoldFire()
	m.stopMotors()
	m.Sounds.Play(sound.Hit)
	m.record(battlelog.Hit, hit.Format(time.RFC3339Nano))
	m.enter(Killed)
}

func (m *LaserTagMode) search(ctx context.Context, now time.Time) error {
	f, pan, err := pixy.Scan(ctx, m.cam, m.pan.Pos(), m.config.ScanSettle)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	m.pan.Set(pan)
	m.lastFrame = f.CaptureTime
	if _, ok := m.target(f); ok {
		m.lastSeen = now
		m.enter(Chasing)
		return nil
	}

	m.spinDir = 1
	if m.rng.IntN(2) == 0 {
		m.spinDir = -1
	}
	m.spinUntil = now.Add(m.halfToFull(m.config.RoamSpinMax))
	m.roamUntil = m.spinUntil.Add(m.halfToFull(m.config.RoamForwardMax))
	m.enter(Roaming)
	return nil
}

func (m *LaserTagMode) halfToFull(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	half := limit / 2
	return half + time.Duration(m.rng.Int64N(int64(limit-half)+1))
}

func (m *LaserTagMode) roam(ctx context.Context, now time.Time) error {
	f, err := m.cam.WaitForFrameAfter(ctx, m.lastFrame)
	if err != nil {
		return err
	}
	m.lastFrame = f.CaptureTime
	if _, ok := m.target(f); ok {
		m.stopMotors()
		m.lastSeen = now
		m.enter(Chasing)
		return nil
	}

	speed := m.config.RoamSpeed
	switch {
	case now.Before(m.spinUntil):
		return m.motors.SetSpeeds(m.spinDir*speed, -m.spinDir*speed)
	case now.Before(m.roamUntil):
		return m.motors.SetSpeeds(speed, speed)
	}
	m.stopMotors()
	m.enter(Searching)
	return nil
}

func (m *LaserTagMode) chase(ctx context.Context, now time.Time, dt float64) error {
	f, err := m.cam.WaitForFrameAfter(ctx, m.lastFrame)
	if err != nil {
		return err
	}
	m.lastFrame = f.CaptureTime
	scene := f.Scene()
	if shots := m.weapon.ShotsFired(); shots > m.shots {
		m.afterShots(shots, scene)
	}
	m.prevScene = scene

	target, ok := m.target(f)
	if !ok {
		m.weapon.HoldFire()
		if now.Sub(m.lastSeen) >= m.config.LostTimeout {
			m.log.Info().Msg("Lost target")
			m.stopMotors()
			m.Sounds.Play(sound.Lost)
			m.enter(Searching)
		}
		return nil
	}
	m.lastSeen = now

	cx, _ := target.Centre()
	panError := pixy.XCenter - cx
	if err := m.cam.SetPan(m.pan.Update(int(panError))); err != nil {
		return err
	}

	cmd := m.config.Approach.Toward(target.Width, panError)
	cmd.Bias = m.heading.Bias(float64(m.pan.TurnError()), dt)
	if err := m.motors.SetSpeeds(m.config.Mixer.Mix(cmd)); err != nil {
		return err
	}

	if math.Abs(panError) <= float64(m.fireTolerance.Get()) && abs(m.pan.TurnError()) <= m.aimTolerance.Get() {
		m.weapon.FireAtWill(false, 0)
	} else {
		m.weapon.HoldFire()
	}
	return nil
}

// afterShots compares the scene from before the latest shots with the one
// after. A target that vanished may have been knocked out.
func (m *LaserTagMode) afterShots(shots uint64, after vision.Scene) {
	m.shots = shots
	m.Sounds.Play(sound.Fire)
	m.record(battlelog.Shot, fmt.Sprint(shots))

	diff := m.prevScene.Diff(after, m.config.SimilarityThreshold)
	if len(diff.Ambiguous) > 0 {
		m.log.Debug().Int("pairs", len(diff.Ambiguous)).Msg("Ambiguous scene match after shot")
	}
	for _, b := range diff.Disappeared {
		if b.Signature != m.config.TargetSignature {
			continue
		}
		m.log.Info().Stringer("block", b).Msg("Target disappeared after shot")
		m.record(battlelog.TargetLost, b.String())
	}

	name := fmt.Sprintf("shot-%04d", shots)
	if err := m.Scenes.Save(name+"-before", m.prevScene); err != nil {
		m.log.Warn().Err(err).Msg("Failed to save scene")
	}
	if err := m.Scenes.Save(name+"-after", after); err != nil {
		m.log.Warn().Err(err).Msg("Failed to save scene")
	}
}

// target picks the block to go after from a frame, if any.
func (m *LaserTagMode) target(f pixy.Frame) (vision.Block, bool) {
	blocks := f.Scene().WithSignature(m.config.TargetSignature)
	m.targets = len(blocks)
	return vision.ChooseTarget(blocks, pixy.XCenter, pixy.YCenter)
}

func (m *LaserTagMode) enter(p Phase) {
	old := Phase(m.phase.Swap(int32(p)))
	if old == p {
		return
	}
	m.log.Info().Stringer("from", old).Stringer("to", p).Msg("Phase change")
	m.record(battlelog.Phase, p.String())
	if p == Chasing {
		m.shots = m.weapon.ShotsFired()
		m.prevScene = vision.Scene{}
		m.pan.Set(m.pan.Pos())
	}
}

func (m *LaserTagMode) record(kind battlelog.Kind, detail string) {
	if err := m.Events.Record(kind, detail); err != nil {
		m.log.Warn().Err(err).Msg("Failed to record event")
	}
}

func (m *LaserTagMode) stopMotors() {
	if err := m.motors.Stop(); err != nil {
		m.log.Error().Err(err).Msg("Failed to stop motors")
	}
}

func (m *LaserTagMode) publishStatus() {
	screen.SetStatus(screen.Status{
		Phase:    m.Phase().String(),
		Shots:    m.weapon.ShotsFired(),
		Hits:     m.hits,
		Targets:  m.targets,
		Disabled: m.weapon.Disabled(),
		Pan:      m.pan.Pos(),
	})
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type nopRecorder struct{}

func (nopRecorder) Record(battlelog.Kind, string) error { return nil }

type nopSaver struct{}

func (nopSaver) Save(string, vision.Scene) error { return nil }

type nopSounds struct{}

func (nopSounds) Play(string) {}
