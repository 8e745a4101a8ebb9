package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/nvm/cmd/nvm/console"
)

var statusCmd = cli.Command{
	Name:  "status",
	Usage: "read and decode the controller status register",
	Flags: targetFlags,
	Action: func(c *cli.Context) error {
		t, err := setupTarget(c)
		if err != nil {
			return console.Exit(1, "target setup error: %s", console.Red(err))
		}
		ctx := console.SetVerbose(context.Background(), c.Bool("verbose"))
		completion, raw, err := t.ctrl.Status(ctx)
		if err != nil {
			return console.Exit(1, "status read error: %s", console.Red(err))
		}
		console.PInfof(console.PictoChip, "controller status: %s (raw 0x%08X)", console.White(completion), uint32(raw))
		return nil
	},
}

var layoutCmd = cli.Command{
	Name:  "layout",
	Usage: "print the active chip layout",
	Flags: targetFlags,
	Action: func(c *cli.Context) error {
		t, err := setupTarget(c)
		if err != nil {
			return console.Exit(1, "target setup error: %s", console.Red(err))
		}
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		if err := enc.Encode(t.layout); err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		return nil
	},
}
