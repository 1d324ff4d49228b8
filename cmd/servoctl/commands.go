package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"

	"github.com/masatomizuta/0816feeder/pkg/config"
	"github.com/masatomizuta/0816feeder/pkg/servo"
	"github.com/masatomizuta/0816feeder/pkg/shield"
)

// Commands accepted at the prompt, one per line.
type Commands struct {
	Attach AttachCmd `cmd:"" help:"Attach the servo of a feeder slot."`
	Detach DetachCmd `cmd:"" help:"Detach the servo of a feeder slot and turn its output off."`
	Write  WriteCmd  `cmd:"" help:"Write an angle (below 544) or a pulse width in microseconds."`
	Angle  AngleCmd  `cmd:"" help:"Move to an angle, 0-180 degrees."`
	Us     UsCmd     `cmd:"" name:"us" help:"Set the pulse width in microseconds."`
	Read   ReadCmd   `cmd:"" help:"Show the last written position."`
	Status StatusCmd `cmd:"" help:"List attached servos."`
	Quit   QuitCmd   `cmd:"" help:"Detach everything and exit."`
}

type Context struct {
	controller *servo.Controller
	shield     *shield.Shield
	cfg        *config.Config
	servos     map[int]*servo.Servo
	out        io.Writer
}

func NewContext(controller *servo.Controller, sh *shield.Shield, cfg *config.Config, out io.Writer) *Context {
	return &Context{
		controller: controller,
		shield:     sh,
		cfg:        cfg,
		servos:     map[int]*servo.Servo{},
		out:        out,
	}
}

// attached returns the servo of a slot, failing if it is not attached.
func (c *Context) attached(slot int) (*servo.Servo, error) {
	s, ok := c.servos[slot]
	if !ok || !s.Attached() {
		return nil, errors.Errorf("slot %d is not attached", slot)
	}
	return s, nil
}

type AttachCmd struct {
	Slot int `arg:"" help:"Feeder slot."`
	Min  int `help:"Minimum pulse width in us (default from config)."`
	Max  int `help:"Maximum pulse width in us (default from config)."`
}

func (a *AttachCmd) Run(ctx *Context) error {
	ch, err := ctx.shield.Channel(a.Slot)
	if err != nil {
		return err
	}
	s, ok := ctx.servos[a.Slot]
	if !ok {
		s, err = ctx.controller.NewServo()
		if err != nil {
			return err
		}
		ctx.servos[a.Slot] = s
	}
	min, max := ctx.cfg.Limits(a.Slot)
	if a.Min != 0 {
		min = a.Min
	}
	if a.Max != 0 {
		max = a.Max
	}
	if _, err := s.AttachWithLimits(ch, min, max); err != nil {
		return err
	}
	fmt.Fprintf(ctx.out, "Slot %d attached to channel %d (%d-%dus), at %dus\n", a.Slot, ch, min, max, s.ReadMicroseconds())
	return nil
}

type DetachCmd struct {
	Slot int `arg:""`
}

func (d *DetachCmd) Run(ctx *Context) error {
	s, ok := ctx.servos[d.Slot]
	if !ok {
		return errors.Errorf("slot %d was never attached", d.Slot)
	}
	return s.Detach()
}

type WriteCmd struct {
	Slot  int `arg:""`
	Value int `arg:""`
}

func (w *WriteCmd) Run(ctx *Context) error {
	s, err := ctx.attached(w.Slot)
	if err != nil {
		return err
	}
	return s.Write(w.Value)
}

type AngleCmd struct {
	Slot    int `arg:""`
	Degrees int `arg:""`
}

func (a *AngleCmd) Run(ctx *Context) error {
	s, err := ctx.attached(a.Slot)
	if err != nil {
		return err
	}
	return s.WriteAngle(a.Degrees)
}

type UsCmd struct {
	Slot         int `arg:""`
	Microseconds int `arg:""`
}

func (u *UsCmd) Run(ctx *Context) error {
	s, err := ctx.attached(u.Slot)
	if err != nil {
		return err
	}
	return s.WriteMicroseconds(u.Microseconds)
}

type ReadCmd struct {
	Slot int `arg:""`
}

func (r *ReadCmd) Run(ctx *Context) error {
	s, err := ctx.attached(r.Slot)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.out, "Slot %d: %d degrees, %dus\n", r.Slot, s.Read(), s.ReadMicroseconds())
	return nil
}

type StatusCmd struct{}

func (StatusCmd) Run(ctx *Context) error {
	fmt.Fprintf(ctx.out, "Shield %s, %d feeders, claimed channels %v\n",
		ctx.shield.Name, ctx.shield.NumberOfFeeders(), ctx.controller.Registry().Claimed())
	for slot := 0; slot < ctx.shield.NumberOfFeeders(); slot++ {
		s, ok := ctx.servos[slot]
		if !ok || !s.Attached() {
			continue
		}
		min, max := s.Limits()
		fmt.Fprintf(ctx.out, "  slot %2d ch %2d  %4dus  %3d deg  [%d-%d]\n",
			slot, s.Channel(), s.ReadMicroseconds(), s.Read(), min, max)
	}
	return nil
}

type QuitCmd struct{}

func (QuitCmd) Run(ctx *Context) error {
	return ErrQuit
}

var ErrQuit = errors.New("quit")

func NewParser(cmds *Commands, out io.Writer) (*kong.Kong, error) {
	return kong.New(cmds,
		kong.Writers(out, out),
		// --help at the prompt must not end the session.
		kong.Exit(func(int) {}),
	)
}

// Execute parses and runs a single prompt line.
func Execute(parser *kong.Kong, ctx *Context, line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	parsed, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return parsed.Run(ctx)
}
