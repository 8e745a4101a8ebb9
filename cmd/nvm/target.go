package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/nvm"
	"github.com/mklimuk/nvm/adapter"
	"github.com/mklimuk/nvm/eeprom"
	"github.com/mklimuk/nvm/flash"
	"github.com/mklimuk/nvm/i2cbridge"
	"github.com/mklimuk/nvm/sim"
)

// targetFlags are shared by every command that touches a chip.
var targetFlags = []cli.Flag{
	&cli.StringFlag{Name: "backend", Aliases: []string{"b"}, Usage: "target backend: sim, probe or i2c", Value: "sim"},
	&cli.StringFlag{Name: "chip", Aliases: []string{"c"}, Usage: "built-in chip geometry: cat3, cat5-64, cat5-128 or cat5-192", Value: "cat3"},
	&cli.StringFlag{Name: "layout", Aliases: []string{"l"}, Usage: "chip layout YAML file, overrides --chip"},
	&cli.StringFlag{Name: "image", Usage: "flash image file loaded into the sim backend and written back after the operation"},
	&cli.StringFlag{Name: "i2c-dev", Usage: "i2c bus name for the i2c backend", Value: "/dev/i2c-1"},
	&cli.IntFlag{Name: "i2c-addr", Usage: "i2c bridge address", Value: i2cbridge.DefaultAddress},
	&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
}

// target bundles the bus, the geometry and the drivers on top of it.
type target struct {
	layout nvm.Layout
	ctrl   *flash.Controller
	data   *eeprom.Accessor
	hw     *sim.Controller
	image  string
}

func setupTarget(c *cli.Context) (*target, error) {
	layout, err := nvm.BuiltinLayout(c.String("chip"))
	if err != nil {
		return nil, err
	}
	if path := c.String("layout"); path != "" {
		layout, err = nvm.LoadLayoutFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not load chip layout: %w", err)
		}
	}
	t := &target{layout: layout, image: c.String("image")}
	var bus nvm.Bus
	switch c.String("backend") {
	case "sim":
		hw := sim.New(layout)
		if t.image != "" {
			data, err := os.ReadFile(t.image)
			if err != nil {
				return nil, fmt.Errorf("could not read flash image: %w", err)
			}
			if err := hw.LoadFlash(layout.FlashBase, data); err != nil {
				return nil, err
			}
			slog.Debug("flash image loaded", "path", t.image, "bytes", len(data))
		}
		t.hw = hw
		bus = hw
	case "probe":
		bus = adapter.NewProbe()
	case "i2c":
		bridge, err := i2cbridge.New(c.String("i2c-dev"), uint16(c.Int("i2c-addr")))
		if err != nil {
			return nil, fmt.Errorf("could not open i2c bridge: %w", err)
		}
		bus = bridge
	default:
		return nil, fmt.Errorf("unknown backend %q", c.String("backend"))
	}
	t.ctrl = flash.New(bus, layout)
	t.data = eeprom.New(t.ctrl)
	return t, nil
}

// flush writes the sim flash content back to the image file, so a
// sequence of cli invocations behaves like one persistent chip.
func (t *target) flush() error {
	if t.hw == nil || t.image == "" {
		return nil
	}
	data, err := t.hw.DumpFlash(t.layout.FlashBase, int(t.layout.FlashSize))
	if err != nil {
		return err
	}
	if err := os.WriteFile(t.image, data, 0o644); err != nil {
		return fmt.Errorf("could not write flash image: %w", err)
	}
	return nil
}

func parseAddr(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return uint32(v), nil
}

func parseWord(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid word value %q: %w", s, err)
	}
	return uint32(v), nil
}

func parseHexBytes(s string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", "_", "", "0x", "").Replace(strings.ToLower(s))
	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}
	return data, nil
}
