package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Ngotcode/pixybattle/pkg/joystick"
)

// Prints events from the remote, to check the button numbering the
// controller relies on.
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	jDev := os.Getenv("JOYSTICK_DEVICE")
	if jDev == "" {
		jDev = "/dev/input/js0"
	}
	j, err := joystick.Open(jDev)
	if err != nil {
		fmt.Printf("Failed to open joystick: %v.\n", err)
		os.Exit(1)
	}

	events := make(chan *joystick.Event)
	go func() {
		err := j.Loop(ctx, events)
		fmt.Printf("Joystick stopped: %v\n", err)
	}()
	for e := range events {
		switch {
		case e.Pressed(joystick.ButtonOptions):
			fmt.Println(e, "(options: switch mode)")
		case e.Pressed(joystick.ButtonCross):
			fmt.Println(e, "(cross: fire once)")
		default:
			fmt.Println(e)
		}
	}
}
