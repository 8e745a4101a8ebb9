package main

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/nvm/cmd/nvm/console"
)

var eepromCmd = cli.Command{
	Name:  "eeprom",
	Usage: "data eeprom operations",
	Subcommands: []*cli.Command{
		&eepromWriteCmd,
	},
}

var eepromWriteCmd = cli.Command{
	Name:  "write",
	Usage: "write bytes into the data eeprom",
	Flags: append([]cli.Flag{
		&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Usage: "target address", Required: true},
		&cli.StringFlag{Name: "data", Usage: "hex bytes to write (e.g. '01FF23')", Required: true},
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
		if len(data) == 0 {
			return console.Exit(1, "no data to write")
		}
		t, err := setupTarget(c)
		if err != nil {
			return console.Exit(1, "target setup error: %s", console.Red(err))
		}
		ctx := console.SetVerbose(context.Background(), c.Bool("verbose"))
		for i, b := range data {
			if err := t.data.WriteByte(ctx, addr+uint32(i), b); err != nil {
				return console.Exit(1, "eeprom write error at offset %d: %s", i, console.Red(err))
			}
		}
		console.PInfof(console.PictoPen, "%d bytes written to eeprom at 0x%08X", len(data), addr)
		return nil
	},
}
