package laser

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

const (
	fireCommand = "FIRE"
	hitMessage  = "HIT"
)

// ErrWriteFailed means the port accepted only part of a command.
var ErrWriteFailed = errors.New("failed to write to laser port")

// Port is the serial line to the laser board.
type Port interface {
	io.ReadWriteCloser
}

// PortOpener opens the laser's serial device.
type PortOpener func(device string, baudRate int) (Port, error)

// OpenSerial opens a real serial device, 8N1.
func OpenSerial(device string, baudRate int) (Port, error) {
	return serial.Open(device, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
}

func sendCommand(w io.Writer, command string) error {
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	n, err := w.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// readHits scans lines from the port until it fails (normally because the
// port was closed), sending the arrival time of each HIT line to hits.
func readHits(r io.Reader, hits chan<- time.Time, log zerolog.Logger) {
	scan := bufio.NewScanner(r)
	for scan.Scan() {
		line := strings.TrimRight(scan.Text(), " \t\r\n")
		switch line {
		case hitMessage:
			select {
			case hits <- time.Now():
			default:
				// The worker hasn't caught up; it only needs the latest hit.
				log.Warn().Msg("Hit queue full, dropping hit")
			}
		case "":
		default:
			log.Debug().Str("line", line).Msg("Ignoring unexpected line from laser")
		}
	}
	if err := scan.Err(); err != nil {
		log.Debug().Err(err).Msg("Laser reader stopped")
	}
}

// Dummy is a Port with no hardware behind it. Writes are logged and
// discarded; Hit injects an incoming hit.
type Dummy struct {
	lock   sync.Mutex
	shots  int
	pr     *io.PipeReader
	pw     *io.PipeWriter
	log    zerolog.Logger
	closed bool
}

func NewDummy(log zerolog.Logger) *Dummy {
	pr, pw := io.Pipe()
	return &Dummy{pr: pr, pw: pw, log: log}
}

// DummyOpener returns an opener that always hands out d.
func DummyOpener(d *Dummy) PortOpener {
	return func(string, int) (Port, error) {
		d.lock.Lock()
		defer d.lock.Unlock()
		if d.closed {
			d.pr, d.pw = io.Pipe()
			d.closed = false
		}
		return d, nil
	}
}

func (d *Dummy) Read(p []byte) (int, error) {
	d.lock.Lock()
	pr := d.pr
	d.lock.Unlock()
	return pr.Read(p)
}

func (d *Dummy) Write(p []byte) (int, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if bytes.HasPrefix(p, []byte(fireCommand)) {
		d.shots++
	}
	d.log.Debug().Str("command", strings.TrimSpace(string(p))).Msg("Dummy laser")
	return len(p), nil
}

func (d *Dummy) Close() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.closed = true
	_ = d.pw.Close()
	return d.pr.Close()
}

// Hit simulates the sensor board reporting a hit.
func (d *Dummy) Hit() {
	d.lock.Lock()
	pw := d.pw
	d.lock.Unlock()
	go func() {
		_, _ = pw.Write([]byte(hitMessage + "\n"))
	}()
}

func (d *Dummy) Shots() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.shots
}
