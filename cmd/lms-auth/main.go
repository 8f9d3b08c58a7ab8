package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/savvyindians/go-lms-auth/config"
	"github.com/savvyindians/go-lms-auth/logging"
)

func main() {
	if err := run(os.Args); err != nil {
		if !errors.Is(err, errHelp) {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(os.Getenv("LMS_CONFIG"))
	if err != nil {
		return err
	}

	zlog, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	ctx := context.Background()

	app, err := NewApp(ctx, cfg, zlog)
	if err != nil {
		return err
	}
	defer app.Close()

	cli := commandLine{app: app, out: os.Stdout}
	return cli.run(ctx, args)
}
