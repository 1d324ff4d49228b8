package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/masatomizuta/0816feeder/pkg/config"
	"github.com/masatomizuta/0816feeder/pkg/servo"
)

var CLI struct {
	Config  string `help:"Controller config file." default:"/cfg/servo.yaml"`
	Backend string `help:"Override the I2C backend (devfs, periph, dummy)."`
	Device  string `help:"Override the i2c-dev device file."`
	Verbose bool   `short:"v" help:"Log every PWM write."`
}

func newLogger(verbose bool) (*zap.SugaredLogger, error) {
	zc := zap.NewDevelopmentConfig()
	if !verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	l, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

func main() {
	kctx := kong.Parse(&CLI, kong.Description("Attach and drive the feeder servos by hand."))

	logger, err := newLogger(CLI.Verbose)
	kctx.FatalIfErrorf(err)
	defer logger.Sync()

	cfg, err := config.Load(CLI.Config)
	kctx.FatalIfErrorf(err)
	if CLI.Backend != "" {
		cfg.Backend = CLI.Backend
	}
	if CLI.Device != "" {
		cfg.Device = CLI.Device
	}
	kctx.FatalIfErrorf(cfg.Validate())
	if out, err := cfg.WriteInUse(CLI.Config); err != nil {
		logger.Warnw("Could not record config in use", "error", err)
	} else {
		logger.Infow("Using config", "path", out)
	}

	sh, err := cfg.LoadShield()
	kctx.FatalIfErrorf(err)

	drv, err := cfg.OpenDriver(logger.Named("pca9685"))
	kctx.FatalIfErrorf(errors.Wrap(err, "failed to open PCA9685"))
	defer drv.Close()

	controller := servo.NewController(drv, servo.WithControllerLogger(logger))
	kctx.FatalIfErrorf(controller.Initialize())
	defer func() {
		if err := controller.Close(); err != nil {
			logger.Errorw("Failed to turn off servos", "error", err)
		}
	}()

	cmds := &Commands{}
	parser, err := NewParser(cmds, os.Stdout)
	kctx.FatalIfErrorf(err)
	ctx := NewContext(controller, sh, cfg, os.Stdout)

	fmt.Printf("Shield %s with %d feeder slots. Type --help for commands.\n", sh.Name, sh.NumberOfFeeders())
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}
		err := Execute(parser, ctx, scanner.Text())
		if err == ErrQuit {
			break
		} else if err != nil {
			fmt.Println("ERROR:", err)
		}
	}
}
