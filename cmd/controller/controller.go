package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Ngotcode/pixybattle/pkg/battlelog"
	"github.com/Ngotcode/pixybattle/pkg/botlog"
	"github.com/Ngotcode/pixybattle/pkg/config"
	"github.com/Ngotcode/pixybattle/pkg/hardware"
	"github.com/Ngotcode/pixybattle/pkg/joystick"
	"github.com/Ngotcode/pixybattle/pkg/lasertagmode"
	"github.com/Ngotcode/pixybattle/pkg/pausemode"
	"github.com/Ngotcode/pixybattle/pkg/rcmode"
	"github.com/Ngotcode/pixybattle/pkg/scenelog"
	"github.com/Ngotcode/pixybattle/pkg/screen"
)

type Mode interface {
	Name() string
	Start(ctx context.Context)
	Stop()
}

type JoystickUser interface {
	OnJoystickEvent(event *joystick.Event)
}

func main() {
	fmt.Println("---- Pixy battle ----")

	envErr := godotenv.Load()
	cfg := config.Load(config.Path())

	closer, err := botlog.Setup(cfg.Logging.Level, cfg.Logging.Dir)
	if err != nil {
		fmt.Println("Failed to set up logging:", err)
		os.Exit(1)
	}
	defer closer.Close()
	log := botlog.For("main")
	if envErr != nil {
		log.Debug().Err(envErr).Msg("No .env file")
	}
	log.Info().Int("GOMAXPROCS", runtime.GOMAXPROCS(0)).Msg("Starting")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Bad config")
	}
	if err := config.WriteInUse(cfg, config.InUsePath); err != nil {
		log.Warn().Err(err).Msg("Failed to write in-use config")
	}

	// Our global context, we cancel it to trigger shut down.
	ctx, cancel := context.WithCancel(context.Background())
	registerSignalHandlers(cancel)

	hw, err := hardware.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open hardware")
	}
	defer hw.Shutdown()
	if err := hw.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Laser never came up")
		return
	}

	var session *battlelog.Session
	if cfg.BattleDB != "" {
		db, err := battlelog.Open(cfg.BattleDB)
		if err != nil {
			log.Error().Err(err).Msg("Failed to open battle log, battle won't be recorded")
		} else {
			defer db.Close()
			session, err = db.StartSession(fmt.Sprintf("target signature %d", cfg.Behaviour.TargetSignature))
			if err != nil {
				log.Error().Err(err).Msg("Failed to start battle session")
			} else {
				log.Info().Stringer("session", session.ID).Msg("Recording battle")
				defer session.End()
			}
		}
	}

	tag := lasertagmode.New(cfg.Behaviour, hw.Camera, hw.Laser, hw.Motors)
	tag.Events = session
	tag.Scenes = scenelog.Saver{Dir: cfg.SceneDir}
	tag.Sounds = hw.Sounds

	tunables := tag.Tunables()

	allModes := []Mode{
		tag,
		rcmode.New(hw.Motors, hw.Laser),
		pausemode.New(hw.Motors, hw.Laser),
	}
	activeModeIdx := 0
	activeMode := allModes[activeModeIdx]
	log.Info().Str("mode", activeMode.Name()).Msg("Starting mode")
	activeMode.Start(ctx)

	switchMode := func() {
		activeMode.Stop()
		activeModeIdx = (activeModeIdx + 1) % len(allModes)
		activeMode = allModes[activeModeIdx]
		log.Info().Str("mode", activeMode.Name()).Msg("Mode switch")
		activeMode.Start(ctx)
	}

	joystickEvents := openJoystick(ctx)
	watchdog := time.NewTicker(5 * time.Second)
	defer watchdog.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Context done, stopping active mode and shutting down")
			activeMode.Stop()
			return
		case event, ok := <-joystickEvents:
			if !ok {
				log.Warn().Msg("Joystick gone, carrying on without it")
				joystickEvents = nil
				continue
			}
			switch {
			case event.Pressed(joystick.ButtonOptions):
				switchMode()
			case event.Pressed(joystick.ButtonCross):
				go hw.Laser.FireOnce(time.Second)
			case event.Pressed(joystick.ButtonL1):
				tunables.SelectPrev()
			case event.Pressed(joystick.ButtonR1):
				tunables.SelectNext()
			case event.Type == joystick.EventTypeAxis && event.Number == joystick.AxisDPadY && !event.Init:
				if event.Value < 0 {
					tunables.Current().Add(5)
				} else if event.Value > 0 {
					tunables.Current().Add(-5)
				}
			}
			// Pass other joystick events through if this mode requires them.
			if ju, ok := activeMode.(JoystickUser); ok {
				ju.OnJoystickEvent(event)
			}
		case <-watchdog.C:
			s := screen.CurrentStatus()
			log.Debug().Str("phase", s.Phase).Uint64("shots", s.Shots).Int("hits", s.Hits).Msg("Main loop still running")
		}
	}
}

// openJoystick returns a channel of remote control events, or nil if there
// is no joystick; a nil channel never delivers.
func openJoystick(ctx context.Context) chan *joystick.Event {
	jDev := os.Getenv("JOYSTICK_DEVICE")
	if jDev == "" {
		jDev = "/dev/input/js0"
	}
	j, err := joystick.Open(jDev)
	if err != nil {
		l := botlog.For("main")
		l.Info().Err(err).Msg("No joystick, running autonomously")
		return nil
	}
	events := make(chan *joystick.Event, 1)
	go j.Loop(ctx, events)
	return events
}

func registerSignalHandlers(cancelFunc context.CancelFunc) {
	// Hook Ctrl-C to cause shut down.
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-signals
		l := botlog.For("main")
		l.Warn().Stringer("signal", s).Msg("Signal")
		cancelFunc()
		time.Sleep(5 * time.Second)
		l.Error().Msg("Shut down timed out")
		os.Exit(1)
	}()
}
