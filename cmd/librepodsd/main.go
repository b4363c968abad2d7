// librepodsd is a user-session daemon bridging Apple earbuds and the
// desktop.
//
// It watches BlueZ for AAP-capable devices, opens the proprietary control
// channel when one connects, and exposes the resulting state and commands
// on the session bus as org.librepods.Daemon. In-ear transitions pause and
// resume the desktop's media players over MPRIS.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"librepods/internal/daemon"
	"librepods/internal/indicator"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		tray      = pflag.Bool("tray", false, "show a system tray indicator")
		debug     = pflag.Bool("debug", false, "log every frame sent and received")
		configDir = pflag.String("config-dir", "", "override the config directory")
	)
	pflag.Parse()

	log.Println("LibrePods daemon starting...")

	orch, err := daemon.New(daemon.Options{
		ConfigDir: *configDir,
		Debug:     *debug,
	})
	if err != nil {
		log.Printf("Failed to initialize: %v", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *tray {
		ind := indicator.New(orch.SetNoiseControlMode, cancel)
		orch.SetStateChangeFunc(ind.Update)
		ind.Start()
		defer ind.Stop()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return orch.Run(ctx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("Daemon failed: %v", err)
		return 1
	}

	log.Println("LibrePods daemon stopped.")
	return 0
}
