package laser

import (
	"context"
	"time"
)

// loop is the firing worker. It owns the serial port from the moment it
// opens it until it exits.
func (c *Controller) loop(ctx context.Context, ready chan<- struct{}) {
	defer close(c.done)

	port, hits := c.connect(ctx)
	if port == nil {
		return
	}
	defer func() {
		if port != nil {
			_ = port.Close()
		}
	}()
	close(ready)
	c.log.Info().Msg("Laser ready")

	for {
		if c.standDown.Load() || ctx.Err() != nil {
			c.log.Debug().Msg("Worker exiting")
			return
		}

		c.drainHits(hits)

		if c.Disabled() {
			time.Sleep(c.cfg.PollInterval)
			continue
		}

		requested := c.requested.Load()
		wanted := c.firing.Load() || requested > c.served.Load()
		if wanted && c.cooledDown() {
			if err := sendCommand(port, fireCommand); err != nil {
				c.log.Error().Err(err).Msg("LASER WRITE FAILED; TRYING TO RECOVER")
				_ = port.Close()
				port, hits = c.connect(ctx)
				if port == nil {
					return
				}
				continue
			}
			c.recordShot(requested)
			continue
		}

		time.Sleep(c.cfg.PollInterval)
	}
}

// connect opens the port, retrying every OpenRetryInterval until it works
// or the controller is stood down. It returns a nil port in the latter case.
func (c *Controller) connect(ctx context.Context) (Port, chan time.Time) {
	for {
		port, err := c.opener(c.cfg.Device, c.cfg.BaudRate)
		if err == nil {
			c.log.Info().Str("device", c.cfg.Device).Msg("Opened laser port")
			hits := make(chan time.Time, 16)
			go readHits(port, hits, c.log)
			return port, hits
		}
		c.log.Warn().Err(err).Str("device", c.cfg.Device).
			Dur("retry", c.cfg.OpenRetryInterval).
			Msg("Could not open laser port, waiting to retry")
		select {
		case <-time.After(c.cfg.OpenRetryInterval):
		case <-c.quit:
			return nil, nil
		case <-ctx.Done():
			return nil, nil
		}
	}
}

func (c *Controller) drainHits(hits <-chan time.Time) {
	for {
		select {
		case at := <-hits:
			// A hit inside the recovery window doesn't extend it.
			if c.Disabled() {
				c.log.Debug().Msg("Hit while disabled, ignoring")
				continue
			}
			stamp := max(int64(at.Sub(c.epoch)), 1)
			if stamp > c.lastHit.Load() {
				c.log.Warn().Msg("HIT! Laser disabled")
				c.lastHit.Store(stamp)
			}
		default:
			return
		}
	}
}

func (c *Controller) cooledDown() bool {
	last := c.lastFired.Load()
	return last == 0 || c.since(last) >= c.cfg.Cooldown
}

// recordShot publishes a shot: its time, and that it served the oldest
// outstanding single-shot request, if any. One shot serves one request.
func (c *Controller) recordShot(requested uint64) {
	stamp := c.now()
	if stamp > c.lastFired.Load() {
		c.lastFired.Store(stamp)
	}
	if requested > c.served.Load() {
		c.served.Add(1)
	}
	n := c.shots.Add(1)
	c.log.Debug().Uint64("shot", n).Msg("Fired")
}
