// Package joystick reads a game pad through the Linux joystick API. The
// controller uses it as an optional remote: pause, resume, manual fire.
package joystick

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Ngotcode/pixybattle/pkg/botlog"
)

type EventType uint8

const (
	EventTypeButton EventType = 1
	EventTypeAxis   EventType = 2

	// Set on the synthetic events the driver sends when the device opens.
	eventTypeInit = 0x80
)

// Buttons on a DualShock 4 as the kernel numbers them.
const (
	ButtonCross    = 0
	ButtonCircle   = 1
	ButtonTriangle = 2
	ButtonSquare   = 3
	ButtonL1       = 4
	ButtonR1       = 5
	ButtonL2       = 6
	ButtonR2       = 7
	ButtonShare    = 8
	ButtonOptions  = 9
	ButtonPS       = 10

	// Stick axes run -32767..32767; up and left are negative.
	AxisLStickX = 0
	AxisLStickY = 1
	AxisRStickX = 3
	AxisRStickY = 4
	AxisDPadY   = 7
)

func (e EventType) String() string {
	switch e {
	case EventTypeAxis:
		return "axis"
	case EventTypeButton:
		return "button"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(e))
	}
}

type Joystick struct {
	device io.ReadCloser

	deviceEpoch    uint32
	wallclockEpoch time.Time
}

// js_event from linux/joystick.h.
type rawEvent struct {
	Time   uint32
	Value  int16
	Type   uint8
	Number uint8
}

type Event struct {
	Time   time.Time
	Value  int16
	Type   EventType
	Number uint8
	// Init marks the events describing the initial state.
	Init bool
}

func (e *Event) String() string {
	return fmt.Sprintf("%v(%v)=%v", e.Type, e.Number, e.Value)
}

// Pressed reports whether e is button n going down.
func (e *Event) Pressed(n uint8) bool {
	return e.Type == EventTypeButton && e.Number == n && e.Value == 1 && !e.Init
}

func Open(device string) (*Joystick, error) {
	f, err := os.Open(device)
	if err != nil {
		return nil, err
	}
	return New(f), nil
}

func New(r io.ReadCloser) *Joystick {
	return &Joystick{device: r}
}

func (j *Joystick) ReadEvent() (*Event, error) {
	var raw rawEvent
	if err := binary.Read(j.device, binary.LittleEndian, &raw); err != nil {
		return nil, err
	}

	if j.wallclockEpoch.IsZero() {
		j.deviceEpoch = raw.Time
		j.wallclockEpoch = time.Now()
	}

	return &Event{
		Time:   j.wallclockEpoch.Add(time.Duration(raw.Time-j.deviceEpoch) * time.Millisecond),
		Value:  raw.Value,
		Type:   EventType(raw.Type &^ eventTypeInit),
		Number: raw.Number,
		Init:   raw.Type&eventTypeInit != 0,
	}, nil
}

// Loop reads events into events until the device fails or ctx is done, then
// closes events and the device.
func (j *Joystick) Loop(ctx context.Context, events chan<- *Event) error {
	defer close(events)
	defer j.Close()
	log := botlog.For("joystick")
	for ctx.Err() == nil {
		event, err := j.ReadEvent()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read from joystick")
			return err
		}
		log.Debug().Stringer("event", event).Msg("Joy")
		select {
		case events <- event:
		case <-ctx.Done():
		}
	}
	return ctx.Err()
}

func (j *Joystick) Close() error {
	return j.device.Close()
}
