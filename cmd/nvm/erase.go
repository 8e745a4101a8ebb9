package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/nvm/cmd/nvm/console"
)

var eraseCmd = cli.Command{
	Name:  "erase",
	Usage: "erase one flash page",
	Flags: append([]cli.Flag{
		&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Usage: "page base address (e.g. 0x08001000)", Required: true},
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "skip the confirmation prompt"},
	}, targetFlags...),
	Action: func(c *cli.Context) error {
		addr, err := parseAddr(c.String("address"))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		if !c.Bool("yes") {
			answer, err := console.YesOrNo(fmt.Sprintf("erase page at 0x%08X?", addr))
			if err != nil {
				return console.Exit(1, "%s", console.Red(err))
			}
			if answer != console.Yes {
				console.PInfof(console.PictoStop, "aborted")
				return nil
			}
		}
		t, err := setupTarget(c)
		if err != nil {
			return console.Exit(1, "target setup error: %s", console.Red(err))
		}
		ctx := console.SetVerbose(context.Background(), c.Bool("verbose"))
		if err := t.ctrl.ErasePage(ctx, addr); err != nil {
			return console.Exit(1, "erase error: %s", console.Red(err))
		}
		if err := t.flush(); err != nil {
			return console.Exit(1, "image writeback error: %s", console.Red(err))
		}
		slog.Debug("page erased", "address", fmt.Sprintf("0x%08X", addr))
		console.PInfof(console.PictoEraser, "page at 0x%08X erased", addr)
		return nil
	},
}
