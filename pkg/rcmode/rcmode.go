// Package rcmode drives the robot by hand from the remote: left stick to
// turn, right stick for throttle, R2 to fire at will while held.
package rcmode

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/Ngotcode/pixybattle/pkg/botlog"
	"github.com/Ngotcode/pixybattle/pkg/drive"
	"github.com/Ngotcode/pixybattle/pkg/joystick"
	"github.com/Ngotcode/pixybattle/pkg/motors"
)

type Weapon interface {
	FireAtWill(block bool, timeout time.Duration) bool
	HoldFire()
}

// Mixer maps the stick positions to wheel speeds.
type Mixer func(lStickX, rStickY int16) (left, right int)

type RCMode struct {
	Motors motors.Interface
	Weapon Weapon

	cancel         context.CancelFunc
	stopWG         sync.WaitGroup
	joystickEvents chan *joystick.Event
}

func New(m motors.Interface, w Weapon) *RCMode {
	return &RCMode{
		Motors:         m,
		Weapon:         w,
		joystickEvents: make(chan *joystick.Event),
	}
}

func (m *RCMode) Name() string {
	return "RC mode"
}

func (m *RCMode) Start(ctx context.Context) {
	m.stopWG.Add(1)
	var loopCtx context.Context
	loopCtx, m.cancel = context.WithCancel(ctx)
	go m.loop(loopCtx)
}

func (m *RCMode) Stop() {
	m.cancel()
	m.stopWG.Wait()
}

// OnJoystickEvent hands an event to the mode's loop.
func (m *RCMode) OnJoystickEvent(event *joystick.Event) {
	m.joystickEvents <- event
}

func (m *RCMode) loop(ctx context.Context) {
	defer m.stopWG.Done()
	log := botlog.For("rcmode")

	var leftStickX, rightStickY int16
	var mixer Mixer = MixAggressive

	defer func() {
		m.Weapon.HoldFire()
		if err := m.Motors.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop motors")
		}
	}()

	for {
		var event *joystick.Event
		select {
		case <-ctx.Done():
			return
		case event = <-m.joystickEvents:
		}

		switch event.Type {
		case joystick.EventTypeAxis:
			switch event.Number {
			case joystick.AxisLStickX:
				leftStickX = event.Value
			case joystick.AxisRStickY:
				rightStickY = event.Value
			}
		case joystick.EventTypeButton:
			switch event.Number {
			case joystick.ButtonL2:
				if event.Value == 1 {
					log.Info().Msg("Gentle mode")
					mixer = MixGentle
				} else {
					log.Info().Msg("Aggressive mode")
					mixer = MixAggressive
				}
			case joystick.ButtonR2:
				if event.Value == 1 {
					m.Weapon.FireAtWill(false, 0)
				} else {
					m.Weapon.HoldFire()
				}
			}
		}

		l, r := mixer(leftStickX, rightStickY)
		if err := m.Motors.SetSpeeds(l, r); err != nil {
			log.Error().Err(err).Msg("Failed to set motor speeds!")
		}
	}
}

func MixGentle(lStickX, rStickY int16) (left, right int) {
	return mix(lStickX, rStickY, drive.MaxMotorSpeed/4)
}

func MixAggressive(lStickX, rStickY int16) (left, right int) {
	return mix(lStickX, rStickY, drive.MaxMotorSpeed)
}

func mix(lStickX, rStickY int16, maxSpeed float64) (left, right int) {
	// Put all the values into the range (-1, 1) and apply expo.
	yawExpo := applyExpo(float64(lStickX)/32767.0, 2.5)
	throttleExpo := applyExpo(float64(rStickY)/-32767.0, 1.6)

	l := throttleExpo + yawExpo
	r := throttleExpo - yawExpo
	scale := 1.0
	if m := math.Max(math.Abs(l), math.Abs(r)); m > 1 {
		scale = 1.0 / m
	}
	return scaleAndClamp(l*scale, maxSpeed), scaleAndClamp(r*scale, maxSpeed)
}

func applyExpo(value float64, expo float64) float64 {
	absExpo := math.Pow(math.Abs(value), expo)
	return math.Copysign(absExpo, value)
}

func scaleAndClamp(value, multiplier float64) int {
	return drive.Clamp(int(value*multiplier), -drive.MaxMotorSpeed, drive.MaxMotorSpeed)
}
