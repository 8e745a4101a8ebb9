package main

import (
	"context"
	"encoding/binary"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/nvm/cmd/nvm/console"
)

var programCmd = cli.Command{
	Name:  "program",
	Usage: "program flash memory",
	Subcommands: []*cli.Command{
		&programWordCmd,
		&programHalfPageCmd,
	},
}

var programWordCmd = cli.Command{
	Name:  "word",
	Usage: "program a single word",
	Flags: append([]cli.Flag{
		&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Usage: "word-aligned target address", Required: true},
		&cli.StringFlag{Name: "value", Usage: "32-bit value (e.g. 0xCAFEBABE)", Required: true},
	}, targetFlags...),
	Action: func(c *cli.Context) error {
		addr, err := parseAddr(c.String("address"))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		value, err := parseWord(c.String("value"))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		t, err := setupTarget(c)
		if err != nil {
			return console.Exit(1, "target setup error: %s", console.Red(err))
		}
		ctx := console.SetVerbose(context.Background(), c.Bool("verbose"))
		if err := t.ctrl.ProgramWord(ctx, addr, value); err != nil {
			return console.Exit(1, "program error: %s", console.Red(err))
		}
		if err := t.flush(); err != nil {
			return console.Exit(1, "image writeback error: %s", console.Red(err))
		}
		console.PInfof(console.PictoPen, "word 0x%08X programmed at 0x%08X", value, addr)
		return nil
	},
}

var programHalfPageCmd = cli.Command{
	Name:    "halfpage",
	Aliases: []string{"hp"},
	Usage:   "program one half-page burst",
	Flags: append([]cli.Flag{
		&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Usage: "half-page aligned target address", Required: true},
		&cli.StringFlag{Name: "data", Usage: "hex bytes of the half-page, little endian words", Required: true},
	}, targetFlags...),
	Action: func(c *cli.Context) error {
		addr, err := parseAddr(c.String("address"))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		data, err := parseHexBytes(c.String("data"))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		t, err := setupTarget(c)
		if err != nil {
			return console.Exit(1, "target setup error: %s", console.Red(err))
		}
		if uint32(len(data)) != t.layout.HalfPageBytes() {
			return console.Exit(1, "half-page data must be exactly %d bytes, got %d", t.layout.HalfPageBytes(), len(data))
		}
		words := make([]uint32, t.layout.HalfPageWords)
		for i := range words {
			words[i] = binary.LittleEndian.Uint32(data[i*4:])
		}
		ctx := console.SetVerbose(context.Background(), c.Bool("verbose"))
		if err := t.ctrl.ProgramHalfPage(ctx, addr, words); err != nil {
			return console.Exit(1, "program error: %s", console.Red(err))
		}
		if err := t.flush(); err != nil {
			return console.Exit(1, "image writeback error: %s", console.Red(err))
		}
		console.PInfof(console.PictoPen, "half-page programmed at 0x%08X", addr)
		return nil
	},
}
