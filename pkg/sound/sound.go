package sound

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	"github.com/rs/zerolog"

	"github.com/Ngotcode/pixybattle/pkg/botlog"
)

// Sound file names, relative to the player's directory.
const (
	Ready = "ready.wav"
	Fire  = "fire.wav"
	Hit   = "hit.wav"
	Lost  = "lost.wav"
)

// Player plays short wav files one at a time; a new sound cuts off the
// previous one.
type Player struct {
	dir    string
	sounds chan string
	done   chan struct{}
	log    zerolog.Logger

	// lock guards closed; Play holds it shared so Close can't close sounds
	// under a send.
	lock   sync.RWMutex
	closed bool
}

// NewPlayer starts the playback goroutine. If dir is empty, or the speaker
// can't be opened, sounds are logged and dropped.
func NewPlayer(dir string) *Player {
	p := &Player{
		dir:    dir,
		sounds: make(chan string, 4),
		done:   make(chan struct{}),
		log:    botlog.For("sound"),
	}
	go p.loop()
	return p
}

// Play queues a sound without blocking. If the queue is full, or the player
// is closed, the sound is dropped.
func (p *Player) Play(name string) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.sounds <- name:
	default:
		p.log.Debug().Str("sound", name).Msg("Sound queue full, dropping")
	}
}

// Close stops the player and waits for it to finish. Safe to call more than
// once.
func (p *Player) Close() {
	p.lock.Lock()
	if !p.closed {
		p.closed = true
		close(p.sounds)
	}
	p.lock.Unlock()
	<-p.done
}

func (p *Player) drain() {
	for s := range p.sounds {
		p.log.Debug().Str("sound", s).Msg("Unable to play")
	}
}

func (p *Player) loop() {
	defer close(p.done)
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("Sound player crashed")
		}
		p.drain()
	}()

	if p.dir == "" {
		return
	}
	sampleRate := beep.SampleRate(44100)
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/5)); err != nil {
		p.log.Warn().Err(err).Msg("Failed to open speaker")
		return
	}

	var ctrl *beep.Ctrl
	var s beep.StreamSeekCloser
	for name := range p.sounds {
		if ctrl != nil {
			speaker.Lock()
			ctrl.Paused = true
			ctrl.Streamer = nil
			speaker.Unlock()
			ctrl = nil
		}
		if s != nil {
			s.Close()
			s = nil
		}

		f, err := os.Open(filepath.Join(p.dir, name))
		if err != nil {
			p.log.Warn().Err(err).Msg("Failed to open sound")
			continue
		}
		s, _, err = wav.Decode(f)
		if err != nil {
			f.Close()
			p.log.Warn().Err(err).Msg("Failed to decode sound")
			continue
		}
		ctrl = &beep.Ctrl{Streamer: s}
		speaker.Play(ctrl)
	}
	if s != nil {
		s.Close()
	}
}
