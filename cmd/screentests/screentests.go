package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Ngotcode/pixybattle/pkg/screen"
)

func main() {
	ctx := context.Background()

	device := os.Getenv("SCREEN_DEVICE")
	if device == "" {
		device = "/dev/fb1"
	}
	go screen.LoopUpdatingScreen(ctx, device)

	status := screen.Status{Phase: "TEST", Shots: 3, Hits: 1, Targets: 2, Pan: 500}
	screen.SetStatus(status)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("\nFailed to read stdin: ", err)
			return
		}

		line = strings.TrimSpace(line)
		if line == "!" {
			status.Disabled = !status.Disabled
		} else {
			status.Phase = line
		}
		screen.SetStatus(status)
	}
}
