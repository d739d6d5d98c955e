package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Ngotcode/pixybattle/pkg/botlog"
	"github.com/Ngotcode/pixybattle/pkg/config"
	"github.com/Ngotcode/pixybattle/pkg/hardware"
	"github.com/Ngotcode/pixybattle/pkg/laser"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load(config.Path())
	if _, err := botlog.Setup(cfg.Logging.Level, ""); err != nil {
		fmt.Println("Failed to set up logging:", err)
		return
	}

	opener, dummy := hardware.LaserOpener(cfg.Laser.Device)
	err := laser.WithController(context.Background(), cfg.Laser, opener, func(c *laser.Controller) error {
		return repl(c, dummy)
	})
	if err != nil {
		fmt.Println("Laser failed:", err)
		os.Exit(1)
	}
}

func repl(c *laser.Controller, dummy *laser.Dummy) error {
	fmt.Println(
		`Commands:
    o [timeout]     # Fire once, waiting up to timeout (default 2s)
    m <n>           # Fire n shots
    w               # Fire at will
    h               # Hold fire
    s               # Status
    x               # Simulate a hit (dummy laser only)
    q               # Stand down and quit`)

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("\nFailed to read stdin: ", err)
			return nil
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		switch parts[0] {
		case "o":
			timeout := 2 * time.Second
			if len(parts) > 1 {
				if timeout, err = time.ParseDuration(parts[1]); err != nil {
					fmt.Println("Expected duration, not ", parts[1])
					continue
				}
			}
			fmt.Println("Fired:", c.FireOnce(timeout))
		case "m":
			if len(parts) < 2 {
				fmt.Println("Not enough parameters")
				continue
			}
			n, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Println("Expected int, not ", parts[1])
				continue
			}
			fmt.Println("Fired:", c.FireMultiple(n, 2*time.Second+c.Config().Cooldown))
		case "w":
			c.FireAtWill(false, 0)
		case "h":
			c.HoldFire()
		case "s":
			fmt.Printf("shots=%d firing=%v disabled=%v last fired=%v last hit=%v\n",
				c.ShotsFired(), c.Firing(), c.Disabled(), c.LastFired().Format(time.StampMilli), c.LastHit().Format(time.StampMilli))
		case "x":
			if dummy == nil {
				fmt.Println("Not a dummy laser")
				continue
			}
			dummy.Hit()
		case "q":
			return nil
		default:
			fmt.Println("Unknown command", parts[0])
		}
	}
}
