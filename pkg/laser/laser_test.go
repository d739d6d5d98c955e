package laser

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort records the time of every write and lets the test feed lines
// back as though the laser board had sent them.
type fakePort struct {
	lock       sync.Mutex
	writes     []time.Time
	data       []string
	failWrites int
	closed     bool

	pr *io.PipeReader
	pw *io.PipeWriter
}

func newFakePort() *fakePort {
	pr, pw := io.Pipe()
	return &fakePort{pr: pr, pw: pw}
}

func (p *fakePort) Read(b []byte) (int, error) { return p.pr.Read(b) }

func (p *fakePort) Write(b []byte) (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.failWrites > 0 {
		p.failWrites--
		return 0, errors.New("device unplugged")
	}
	p.writes = append(p.writes, time.Now())
	p.data = append(p.data, string(b))
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.closed = true
	_ = p.pw.Close()
	return p.pr.Close()
}

func (p *fakePort) send(line string) {
	_, _ = p.pw.Write([]byte(line))
}

func (p *fakePort) writeTimes() []time.Time {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]time.Time(nil), p.writes...)
}

func (p *fakePort) isClosed() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.closed
}

type fakeDevice struct {
	lock     sync.Mutex
	failures int
	opens    int
	ports    []*fakePort
	prepare  func(*fakePort)
}

func (d *fakeDevice) open(string, int) (Port, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.opens++
	if d.failures > 0 {
		d.failures--
		return nil, errors.New("no such device")
	}
	p := newFakePort()
	if d.prepare != nil {
		d.prepare(p)
	}
	d.ports = append(d.ports, p)
	return p, nil
}

func (d *fakeDevice) port(i int) *fakePort {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.ports[i]
}

func (d *fakeDevice) openCount() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.opens
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Cooldown = 10 * time.Millisecond
	cfg.Recovery = 50 * time.Millisecond
	cfg.OpenRetryInterval = 10 * time.Millisecond
	return cfg
}

func startController(t *testing.T, cfg Config, dev *fakeDevice) *Controller {
	t.Helper()
	c, err := New(cfg, dev.open)
	require.NoError(t, err)
	t.Cleanup(c.StandDown)
	require.NoError(t, c.Start(context.Background()))
	return c
}

func TestFireOnceHonoursCooldown(t *testing.T) {
	cfg := testConfig()
	cfg.Cooldown = 200 * time.Millisecond
	dev := &fakeDevice{}
	c := startController(t, cfg, dev)

	require.True(t, c.FireOnce(time.Second))
	first := c.LastFired()
	require.True(t, c.FireOnce(time.Second))
	second := c.LastFired()

	assert.GreaterOrEqual(t, second.Sub(first), 200*time.Millisecond)
	writes := dev.port(0).writeTimes()
	require.Len(t, writes, 2)
	assert.GreaterOrEqual(t, writes[1].Sub(writes[0]), 200*time.Millisecond)
	assert.Equal(t, []string{"FIRE\n", "FIRE\n"}, dev.port(0).data)
	assert.EqualValues(t, 2, c.ShotsFired())
}

func TestFireMultiple(t *testing.T) {
	dev := &fakeDevice{}
	c := startController(t, testConfig(), dev)

	results := c.FireMultiple(3, time.Second)

	assert.Equal(t, []bool{true, true, true}, results)
	assert.Len(t, dev.port(0).writeTimes(), 3)
	assert.False(t, c.Firing())
}

func TestFireAtWillDisabledAfterHit(t *testing.T) {
	cfg := testConfig()
	cfg.Recovery = 300 * time.Millisecond
	dev := &fakeDevice{}
	c := startController(t, cfg, dev)

	require.True(t, c.FireAtWill(true, time.Second))
	assert.True(t, c.Firing())
	time.Sleep(50 * time.Millisecond)

	dev.port(0).send("HIT\n")
	require.Eventually(t, func() bool { return !c.LastHit().IsZero() }, time.Second, time.Millisecond)
	hit := c.LastHit()
	assert.True(t, c.Disabled())

	time.Sleep(cfg.Recovery + 100*time.Millisecond)
	c.HoldFire()

	const slack = 20 * time.Millisecond
	var resumed bool
	for _, w := range dev.port(0).writeTimes() {
		if w.After(hit.Add(slack)) {
			assert.False(t, w.Before(hit.Add(cfg.Recovery)), "fired %v after hit", w.Sub(hit))
			resumed = true
		}
	}
	assert.True(t, resumed, "laser never resumed after recovery")
	assert.False(t, c.Disabled())
}

func TestFireOnceWaitsOutRecovery(t *testing.T) {
	cfg := testConfig()
	cfg.Recovery = 200 * time.Millisecond
	dev := &fakeDevice{}
	c := startController(t, cfg, dev)

	dev.port(0).send("HIT\n")
	require.Eventually(t, c.Disabled, time.Second, time.Millisecond)

	assert.True(t, c.FireOnce(0))
	assert.GreaterOrEqual(t, c.LastFired().Sub(c.LastHit()), cfg.Recovery)
}

func TestFireOnceTimesOut(t *testing.T) {
	cfg := testConfig()
	cfg.Recovery = time.Second
	dev := &fakeDevice{}
	c := startController(t, cfg, dev)

	dev.port(0).send("HIT\n")
	require.Eventually(t, c.Disabled, time.Second, time.Millisecond)

	start := time.Now()
	assert.False(t, c.FireOnce(50*time.Millisecond))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Empty(t, dev.port(0).writeTimes())

	// The shot is still owed once recovery ends.
	require.Eventually(t, func() bool { return len(dev.port(0).writeTimes()) == 1 }, 2*time.Second, time.Millisecond)
	assert.False(t, dev.port(0).writeTimes()[0].Before(c.LastHit().Add(cfg.Recovery)))
}

func TestTimedOutShotsEachFireAfterRecovery(t *testing.T) {
	cfg := testConfig()
	cfg.Recovery = 200 * time.Millisecond
	dev := &fakeDevice{}
	c := startController(t, cfg, dev)

	dev.port(0).send("HIT\n")
	require.Eventually(t, c.Disabled, time.Second, time.Millisecond)

	assert.Equal(t, []bool{false, false, false}, c.FireMultiple(3, 10*time.Millisecond))

	require.Eventually(t, func() bool { return len(dev.port(0).writeTimes()) == 3 }, 2*time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, dev.port(0).writeTimes(), 3)
	assert.EqualValues(t, 3, c.ShotsFired())
}

func TestConcurrentFireOnceFiresOncePerCaller(t *testing.T) {
	cfg := testConfig()
	cfg.Cooldown = 100 * time.Millisecond
	dev := &fakeDevice{}
	c := startController(t, cfg, dev)

	require.True(t, c.FireOnce(time.Second))

	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.FireOnce(time.Second)
		}()
	}
	wg.Wait()

	assert.Equal(t, []bool{true, true}, results)
	writes := dev.port(0).writeTimes()
	require.Len(t, writes, 3)
	for i := 1; i < len(writes); i++ {
		assert.GreaterOrEqual(t, writes[i].Sub(writes[i-1]), cfg.Cooldown)
	}
}

func TestFireAtWillServesOneOutstandingShot(t *testing.T) {
	cfg := testConfig()
	cfg.Recovery = 200 * time.Millisecond
	dev := &fakeDevice{}
	c := startController(t, cfg, dev)

	dev.port(0).send("HIT\n")
	require.Eventually(t, c.Disabled, time.Second, time.Millisecond)
	assert.Equal(t, []bool{false, false}, c.FireMultiple(2, 10*time.Millisecond))

	// Continuous fire after recovery pays off the owed shots one at a time.
	c.FireAtWill(false, 0)
	require.Eventually(t, func() bool { return c.served.Load() == 2 }, 2*time.Second, time.Millisecond)
	c.HoldFire()
	assert.GreaterOrEqual(t, c.ShotsFired(), uint64(2))
}

func TestGarbledLinesAreIgnored(t *testing.T) {
	dev := &fakeDevice{}
	c := startController(t, testConfig(), dev)

	dev.port(0).send("garbage\nhit\nHITS\n\x00\x01\n   \n")
	time.Sleep(30 * time.Millisecond)
	assert.True(t, c.LastHit().IsZero())
	assert.True(t, c.FireOnce(time.Second))

	dev.port(0).send("HIT \r\n")
	assert.Eventually(t, func() bool { return !c.LastHit().IsZero() }, time.Second, time.Millisecond)
}

func TestHitDuringRecoveryIsIgnored(t *testing.T) {
	cfg := testConfig()
	cfg.Recovery = 200 * time.Millisecond
	dev := &fakeDevice{}
	c := startController(t, cfg, dev)

	dev.port(0).send("HIT\n")
	require.Eventually(t, func() bool { return !c.LastHit().IsZero() }, time.Second, time.Millisecond)
	first := c.LastHit()

	time.Sleep(20 * time.Millisecond)
	dev.port(0).send("HIT\nHIT\n")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, first, c.LastHit())

	require.Eventually(t, func() bool { return !c.Disabled() }, time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(first), cfg.Recovery)

	dev.port(0).send("HIT\n")
	require.Eventually(t, func() bool { return c.LastHit().After(first) }, time.Second, time.Millisecond)
	assert.True(t, c.Disabled())
}

func TestOnlyOneActiveController(t *testing.T) {
	dev := &fakeDevice{}
	c, err := New(testConfig(), dev.open)
	require.NoError(t, err)

	_, err = New(testConfig(), dev.open)
	assert.ErrorIs(t, err, ErrAlreadyActive)

	c.StandDown()
	c.StandDown()

	c2, err := New(testConfig(), dev.open)
	require.NoError(t, err)
	c2.StandDown()
}

func TestStartRetriesUntilDeviceAppears(t *testing.T) {
	dev := &fakeDevice{failures: 3}
	c := startController(t, testConfig(), dev)

	assert.Equal(t, 4, dev.openCount())
	assert.True(t, c.FireOnce(time.Second))
}

func TestStartAgainReturnsAtOnce(t *testing.T) {
	dev := &fakeDevice{}
	c := startController(t, testConfig(), dev)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, c.Start(ctx))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 1, dev.openCount())
}

func TestStartGivesUpWhenContextEnds(t *testing.T) {
	dev := &fakeDevice{failures: 1 << 30}
	c, err := New(testConfig(), dev.open)
	require.NoError(t, err)
	defer c.StandDown()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Start(ctx), context.DeadlineExceeded)
}

func TestStandDownStopsWorker(t *testing.T) {
	dev := &fakeDevice{}
	c := startController(t, testConfig(), dev)

	c.FireAtWill(false, 0)
	require.Eventually(t, func() bool { return c.ShotsFired() > 2 }, time.Second, time.Millisecond)

	c.StandDown()
	shots := len(dev.port(0).writeTimes())
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, shots, len(dev.port(0).writeTimes()))
	assert.True(t, dev.port(0).isClosed())
	assert.True(t, c.StoodDown())
	assert.False(t, c.Firing())
	assert.False(t, c.FireOnce(0))
	assert.ErrorIs(t, c.Start(context.Background()), ErrStoodDown)
}

func TestWriteFailureReconnects(t *testing.T) {
	dev := &fakeDevice{}
	// The first port fails its first write.
	dev.prepare = func(p *fakePort) {
		if len(dev.ports) == 0 {
			p.failWrites = 1
		}
	}
	c := startController(t, testConfig(), dev)

	assert.True(t, c.FireOnce(time.Second))
	assert.Equal(t, 2, dev.openCount())
	assert.True(t, dev.port(0).isClosed())
	assert.Len(t, dev.port(1).writeTimes(), 1)
}

func TestWithControllerAlwaysStandsDown(t *testing.T) {
	dev := &fakeDevice{}
	boom := errors.New("boom")

	err := WithController(context.Background(), testConfig(), dev.open, func(c *Controller) error {
		assert.True(t, c.FireOnce(time.Second))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	c, err := New(testConfig(), dev.open)
	require.NoError(t, err)
	c.StandDown()
}

func TestDummyPort(t *testing.T) {
	d := NewDummy(zerolog.Nop())
	c, err := New(testConfig(), DummyOpener(d))
	require.NoError(t, err)
	defer c.StandDown()
	require.NoError(t, c.Start(context.Background()))

	assert.True(t, c.FireOnce(time.Second))
	assert.Equal(t, 1, d.Shots())

	d.Hit()
	assert.Eventually(t, c.Disabled, time.Second, time.Millisecond)
}
