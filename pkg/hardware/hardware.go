// Package hardware opens the robot's devices as the config describes and
// owns their lifetimes.
package hardware

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ngotcode/pixybattle/pkg/botlog"
	"github.com/Ngotcode/pixybattle/pkg/config"
	"github.com/Ngotcode/pixybattle/pkg/laser"
	"github.com/Ngotcode/pixybattle/pkg/motors"
	"github.com/Ngotcode/pixybattle/pkg/pixy"
	"github.com/Ngotcode/pixybattle/pkg/screen"
	"github.com/Ngotcode/pixybattle/pkg/sound"
)

type Hardware struct {
	Laser  *laser.Controller
	Camera pixy.Interface
	Motors motors.Interface
	Sounds *sound.Player

	// DummyLaser is set when the laser is a dummy, so that hits can be
	// simulated.
	DummyLaser *laser.Dummy

	cfg config.Config
	log zerolog.Logger
}

func New(cfg config.Config) (*Hardware, error) {
	h := &Hardware{cfg: cfg, log: botlog.For("hardware")}

	opener, dummy := LaserOpener(cfg.Laser.Device)
	l, err := laser.New(cfg.Laser, opener)
	if err != nil {
		return nil, err
	}
	h.Laser = l
	h.DummyLaser = dummy

	h.Camera, err = OpenCamera(cfg.Camera)
	if err != nil {
		l.StandDown()
		return nil, err
	}

	h.Motors, err = OpenMotors(cfg.Drive)
	if err != nil {
		h.Camera.Close()
		l.StandDown()
		return nil, err
	}

	h.Sounds = sound.NewPlayer(cfg.SoundDir)
	return h, nil
}

// Start brings up the screen and the laser. It returns once the laser's
// serial port is open, or ctx is done.
func (h *Hardware) Start(ctx context.Context) error {
	go screen.LoopUpdatingScreen(ctx, h.cfg.ScreenDevice)
	return h.Laser.Start(ctx)
}

func (h *Hardware) PlaySound(name string) {
	h.Sounds.Play(name)
}

func (h *Hardware) Shutdown() {
	h.log.Info().Msg("Zeroing motors for shut down")
	if err := h.Motors.Stop(); err != nil {
		h.log.Error().Err(err).Msg("Failed to stop motors")
	}
	time.Sleep(30 * time.Millisecond)
	h.Laser.StandDown()
	if err := h.Camera.Close(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to close camera")
	}
	h.Sounds.Close()
}

// LaserOpener picks the serial opener for device; the dummy is returned too
// when device is config.Dummy.
func LaserOpener(device string) (laser.PortOpener, *laser.Dummy) {
	if device == config.Dummy {
		d := laser.NewDummy(botlog.For("laser-dummy"))
		return laser.DummyOpener(d), d
	}
	return laser.OpenSerial, nil
}

func OpenCamera(cfg config.CameraConfig) (pixy.Interface, error) {
	if cfg.Device == config.Dummy {
		return pixy.Empty(), nil
	}
	cam, err := pixy.OpenUART(cfg.Device, cfg.BaudRate)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera: %w", err)
	}
	return cam, nil
}

func OpenMotors(cfg config.DriveConfig) (motors.Interface, error) {
	if cfg.Motors == config.Dummy {
		return motors.NewDummy(), nil
	}
	m, err := motors.New()
	if err != nil {
		return nil, fmt.Errorf("failed to open motors: %w", err)
	}
	m.FlipLeft = cfg.FlipLeft
	m.FlipRight = cfg.FlipRight
	return m, nil
}
