package pausemode

import (
	"context"

	"github.com/Ngotcode/pixybattle/pkg/botlog"
	"github.com/Ngotcode/pixybattle/pkg/motors"
)

type Weapon interface {
	HoldFire()
}

// PauseMode keeps the robot still and quiet while someone handles it.
type PauseMode struct {
	Motors motors.Interface
	Weapon Weapon
}

func New(m motors.Interface, w Weapon) *PauseMode {
	return &PauseMode{Motors: m, Weapon: w}
}

func (t *PauseMode) Name() string {
	return "Pause mode"
}

func (t *PauseMode) Start(ctx context.Context) {
	t.Weapon.HoldFire()
	if err := t.Motors.Stop(); err != nil {
		l := botlog.For("pause")
		l.Error().Err(err).Msg("Failed to stop motors")
	}
}

func (t *PauseMode) Stop() {
}
