// Package motors drives the chassis' two wheels through a Pololu DRV8835
// dual motor driver wired to the Pi's hardware PWM pins.
package motors

import (
	"fmt"
	"sync"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/host"

	"github.com/Ngotcode/pixybattle/pkg/botlog"
	"github.com/Ngotcode/pixybattle/pkg/drive"
)

type Interface interface {
	// SetSpeeds sets both wheels; speeds are clamped to +/-drive.MaxMotorSpeed.
	SetSpeeds(left, right int) error
	Stop() error
}

// Pins of the DRV8835 board in phase/enable mode.
const (
	leftPWMPin   = "GPIO12"
	rightPWMPin  = "GPIO13"
	leftDirPin   = "GPIO5"
	rightDirPin  = "GPIO6"
	pwmFrequency = 20 * physic.KiloHertz
)

type DRV8835 struct {
	lock              sync.Mutex
	leftPWM, rightPWM gpio.PinIO
	leftDir, rightDir gpio.PinIO
	// Flip a wheel if its motor is mounted the other way round.
	FlipLeft, FlipRight bool
}

func New() (*DRV8835, error) {
	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to init periph: %w", err)
	}
	d := &DRV8835{}
	for _, p := range []struct {
		name string
		pin  *gpio.PinIO
	}{
		{leftPWMPin, &d.leftPWM},
		{rightPWMPin, &d.rightPWM},
		{leftDirPin, &d.leftDir},
		{rightDirPin, &d.rightDir},
	} {
		pin := gpioreg.ByName(p.name)
		if pin == nil {
			return nil, fmt.Errorf("no such pin %s", p.name)
		}
		*p.pin = pin
	}
	if err := d.Stop(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DRV8835) SetSpeeds(left, right int) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.FlipLeft {
		left = -left
	}
	if d.FlipRight {
		right = -right
	}
	if err := setMotor(d.leftPWM, d.leftDir, left); err != nil {
		return fmt.Errorf("left motor: %w", err)
	}
	if err := setMotor(d.rightPWM, d.rightDir, right); err != nil {
		return fmt.Errorf("right motor: %w", err)
	}
	return nil
}

func (d *DRV8835) Stop() error {
	return d.SetSpeeds(0, 0)
}

func setMotor(pwm, dir gpio.PinIO, speed int) error {
	level := gpio.Low
	if speed < 0 {
		level = gpio.High
		speed = -speed
	}
	if err := dir.Out(level); err != nil {
		return err
	}
	return pwm.PWM(DutyFor(speed), pwmFrequency)
}

// DutyFor maps a speed magnitude onto a PWM duty cycle.
func DutyFor(speed int) gpio.Duty {
	speed = drive.Clamp(speed, 0, drive.MaxMotorSpeed)
	return gpio.Duty(int64(gpio.DutyMax) * int64(speed) / drive.MaxMotorSpeed)
}

// Dummy logs speeds instead of driving anything.
type Dummy struct {
	lock        sync.Mutex
	Left, Right int
	Calls       int
	quiet       bool
}

func NewDummy() *Dummy {
	return &Dummy{}
}

// NewQuietDummy is a Dummy that doesn't log, for tests.
func NewQuietDummy() *Dummy {
	return &Dummy{quiet: true}
}

func (d *Dummy) SetSpeeds(left, right int) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.Left = drive.Clamp(left, -drive.MaxMotorSpeed, drive.MaxMotorSpeed)
	d.Right = drive.Clamp(right, -drive.MaxMotorSpeed, drive.MaxMotorSpeed)
	d.Calls++
	if !d.quiet {
		l := botlog.For("motors")
		l.Debug().Int("left", d.Left).Int("right", d.Right).Msg("Dummy motors")
	}
	return nil
}

func (d *Dummy) Stop() error {
	return d.SetSpeeds(0, 0)
}

func (d *Dummy) Speeds() (int, int) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.Left, d.Right
}
