package pixy

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"

	"github.com/Ngotcode/pixybattle/pkg/botlog"
	"github.com/Ngotcode/pixybattle/pkg/servoloop"
	"github.com/Ngotcode/pixybattle/pkg/vision"
)

// Serial protocol words, little-endian.
const (
	syncNormal     = 0xaa55
	syncColorCode  = 0xaa56
	syncOutOfPhase = 0x55aa
	servoSync      = 0xff00
)

// UART talks to a Pixy over its serial interface. The camera streams frames
// continuously; a reader goroutine decodes them and keeps the latest.
type UART struct {
	port io.ReadWriteCloser
	log  zerolog.Logger

	// EmptyAfter is how long without data before the camera is assumed to
	// see nothing. The Pixy sends nothing at all for an empty frame.
	emptyAfter time.Duration

	writeLock sync.Mutex
	tilt      int

	lock    sync.Mutex
	latest  Frame
	updated chan struct{}
	err     error
}

// OpenUART opens the camera's serial device.
func OpenUART(device string, baudRate int) (*UART, error) {
	port, err := serial.Open(device, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	return NewUART(port, 60*time.Millisecond), nil
}

// NewUART starts decoding frames from port.
func NewUART(port io.ReadWriteCloser, emptyAfter time.Duration) *UART {
	u := &UART{
		port:       port,
		log:        botlog.For("pixy"),
		emptyAfter: emptyAfter,
		tilt:       servoloop.CenterPos,
		updated:    make(chan struct{}),
	}
	frames := make(chan []vision.Block)
	go u.decode(frames)
	go u.publish(frames)
	return u
}

func (u *UART) WaitForFrameAfter(ctx context.Context, t time.Time) (Frame, error) {
	for {
		u.lock.Lock()
		f, updated, err := u.latest, u.updated, u.err
		u.lock.Unlock()

		if f.CaptureTime.After(t) {
			return f, nil
		}
		if err != nil {
			return Frame{}, err
		}
		select {
		case <-updated:
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		}
	}
}

// SetPan sends a servo command; tilt is held at its centre.
func (u *UART) SetPan(pos int) error {
	pos = servoloop.Clamp(pos)
	buf := make([]byte, 6)
	binary.LittleEndian.PutUint16(buf[0:], servoSync)
	binary.LittleEndian.PutUint16(buf[2:], uint16(pos))
	binary.LittleEndian.PutUint16(buf[4:], uint16(u.tilt))

	u.writeLock.Lock()
	defer u.writeLock.Unlock()
	_, err := u.port.Write(buf)
	return err
}

func (u *UART) Close() error {
	return u.port.Close()
}

func (u *UART) setLatest(f Frame, err error) {
	u.lock.Lock()
	defer u.lock.Unlock()
	if err != nil {
		u.err = err
	} else {
		u.latest = f
	}
	close(u.updated)
	u.updated = make(chan struct{})
}

// publish turns decoded frames into Frames, inventing empty ones when the
// camera goes quiet.
func (u *UART) publish(frames <-chan []vision.Block) {
	quiet := time.NewTimer(u.emptyAfter)
	defer quiet.Stop()
	for {
		select {
		case blocks, ok := <-frames:
			if !ok {
				return
			}
			u.setLatest(Frame{CaptureTime: time.Now(), Blocks: blocks}, nil)
			if !quiet.Stop() {
				select {
				case <-quiet.C:
				default:
				}
			}
			quiet.Reset(u.emptyAfter)
		case <-quiet.C:
			u.setLatest(Frame{CaptureTime: time.Now()}, nil)
			quiet.Reset(u.emptyAfter)
		}
	}
}

func (u *UART) decode(frames chan<- []vision.Block) {
	defer close(frames)
	d := &decoder{r: bufio.NewReader(u.port), log: u.log}
	err := d.run(frames)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
		err = ErrClosed
	}
	u.log.Info().Err(err).Msg("Pixy reader stopped")
	u.setLatest(Frame{}, err)
}

type decoder struct {
	r   *bufio.Reader
	log zerolog.Logger
}

func (d *decoder) word() (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func isSync(w uint16) bool {
	return w == syncNormal || w == syncColorCode
}

// run decodes the stream until it fails. Each block starts with a sync
// word; two sync words in a row mark the start of a frame. A frame is sent
// when the next one starts.
func (d *decoder) run(frames chan<- []vision.Block) error {
	var blocks []vision.Block
	inFrame := false
	for {
		w, err := d.word()
		if err != nil {
			return err
		}
		if w == syncOutOfPhase {
			// Half a word out; drop a byte to realign.
			if _, err := d.r.ReadByte(); err != nil {
				return err
			}
			continue
		}
		if !isSync(w) {
			continue
		}

		next, err := d.word()
		if err != nil {
			return err
		}
		if isSync(next) {
			if inFrame {
				frames <- blocks
			}
			blocks = nil
			inFrame = true
			w = next
			if next, err = d.word(); err != nil {
				return err
			}
		}

		b, ok, err := d.block(w == syncColorCode, next)
		if err != nil {
			return err
		}
		if ok && inFrame && len(blocks) < BlockBufferSize {
			blocks = append(blocks, b)
		}
	}
}

// block reads the rest of a block whose sync and checksum words have been
// read. Colour-code blocks carry an extra angle word.
func (d *decoder) block(colorCode bool, checksum uint16) (vision.Block, bool, error) {
	n := 5
	if colorCode {
		n = 6
	}
	var words [6]uint16
	var sum uint16
	for i := 0; i < n; i++ {
		w, err := d.word()
		if err != nil {
			return vision.Block{}, false, err
		}
		words[i] = w
		sum += w
	}
	if sum != checksum {
		d.log.Debug().Uint16("checksum", checksum).Uint16("sum", sum).Msg("Dropping block with bad checksum")
		return vision.Block{}, false, nil
	}
	return fromCentre(words[0], words[1], words[2], words[3], words[4]), true, nil
}
