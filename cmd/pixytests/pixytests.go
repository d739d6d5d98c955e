package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/Ngotcode/pixybattle/pkg/botlog"
	"github.com/Ngotcode/pixybattle/pkg/config"
	"github.com/Ngotcode/pixybattle/pkg/hardware"
	"github.com/Ngotcode/pixybattle/pkg/pixy"
	"github.com/Ngotcode/pixybattle/pkg/scenelog"
	"github.com/Ngotcode/pixybattle/pkg/servoloop"
	"github.com/Ngotcode/pixybattle/pkg/vision"
)

// Exercises the camera: "frames" prints what it sees, "scan" runs a search
// sweep, "diff" prints what changed between consecutive snapshots and "pan"
// moves the servo.
func main() {
	snapshotFrames := flag.Int("frames", 5, "frames merged per snapshot")
	sceneDir := flag.String("scenes", "", "directory to save snapshots in")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load(config.Path())
	if _, err := botlog.Setup(cfg.Logging.Level, ""); err != nil {
		fmt.Println("Failed to set up logging:", err)
		return
	}
	cam, err := hardware.OpenCamera(cfg.Camera)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer cam.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	threshold := cfg.Behaviour.SimilarityThreshold
	switch flag.Arg(0) {
	case "", "frames":
		var last time.Time
		for ctx.Err() == nil {
			f, err := cam.WaitForFrameAfter(ctx, last)
			if err != nil {
				fmt.Println(err)
				return
			}
			last = f.CaptureTime
			fmt.Println(f.CaptureTime.Format(time.StampMilli), f.Blocks)
		}
	case "scan":
		f, pan, err := pixy.Scan(ctx, cam, servoloop.CenterPos, cfg.Behaviour.ScanSettle)
		if err != nil {
			fmt.Println(err)
			return
		}
		fmt.Println("Pan", pan, f.Blocks)
	case "diff":
		saver := scenelog.Saver{Dir: *sceneDir}
		var prev vision.Scene
		for i := 0; ctx.Err() == nil; i++ {
			scene, err := pixy.Snapshot(ctx, cam, *snapshotFrames, threshold)
			if err != nil {
				fmt.Println(err)
				return
			}
			if d := prev.Diff(scene, threshold); !d.Empty() || len(d.Ambiguous) > 0 {
				fmt.Printf("added=%v disappeared=%v ambiguous=%d\n", d.Added, d.Disappeared, len(d.Ambiguous))
			}
			if err := saver.Save(fmt.Sprintf("snapshot-%04d", i), scene); err != nil {
				fmt.Println(err)
			}
			prev = scene
		}
	case "pan":
		var pos int
		if _, err := fmt.Sscan(flag.Arg(1), &pos); err != nil {
			fmt.Println("Expected pan position 0-1000")
			return
		}
		if err := cam.SetPan(pos); err != nil {
			fmt.Println(err)
		}
		time.Sleep(500 * time.Millisecond)
	default:
		fmt.Println("Unknown command", flag.Arg(0))
	}
}
