package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"otdbot/internal/app"
	"otdbot/internal/pipeline"
)

func main() {
	var (
		cfgPath string
		once    bool
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml")
	flag.BoolVar(&once, "once", false, "run one cycle and exit instead of daemonizing")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	if once {
		out, err := a.RunOnce(ctx)
		a.Close(context.Background())
		switch {
		case err == nil:
			return
		case out == pipeline.OutcomePosted:
			// partial delivery: the day is done but a sink failed
			fmt.Fprintln(os.Stderr, "warning:", err)
			return
		default:
			fmt.Fprintln(os.Stderr, "run failed:", err)
			os.Exit(1)
		}
	}

	if err := a.StartDaemon(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		a.Close(context.Background())
		os.Exit(1)
	}

	<-ctx.Done()
	a.Close(context.Background())
}
