package main

import (
	"flag"
	"fmt"

	"go.bug.st/serial"

	"github.com/Ngotcode/pixybattle/pkg/botlog"
)

// Opens and closes a serial device many times and reports how often that
// fails. Flaky USB serial adapters show up here before they show up in a
// battle.
func main() {
	device := flag.String("device", "/dev/ttyACM0", "serial device")
	baud := flag.Int("baud", 9600, "baud rate")
	reps := flag.Int("reps", 1000, "open/close cycles")
	flag.Parse()

	if _, err := botlog.Setup("info", ""); err != nil {
		fmt.Println("Failed to set up logging:", err)
		return
	}
	log := botlog.For("serialtests")

	if ports, err := serial.GetPortsList(); err == nil {
		log.Info().Strs("ports", ports).Msg("Serial ports")
	}

	failures := 0
	for i := 0; i < *reps; i++ {
		p, err := serial.Open(*device, &serial.Mode{BaudRate: *baud})
		if err != nil {
			failures++
			log.Error().Err(err).Int("rep", i).Msg("FAILED TEST")
			continue
		}
		if err := p.Close(); err != nil {
			failures++
			log.Error().Err(err).Int("rep", i).Msg("FAILED TEST (close)")
			continue
		}
		log.Debug().Int("rep", i).Msg("Successful test")
	}

	rate := 0.0
	if *reps > 0 {
		rate = float64(failures) / float64(*reps)
	}
	log.Info().Int("failures", failures).Int("reps", *reps).
		Msg(fmt.Sprintf("Serial has failure rate of %.3f%%", rate*100))
}
