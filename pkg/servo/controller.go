package servo

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/masatomizuta/0816feeder/pkg/channel"
)

// Controller ties one PWM driver to the registry of its channels and hands out
// servos that share them.
type Controller struct {
	driver   Driver
	registry *channel.Registry
	logger   *zap.SugaredLogger

	initOnce    sync.Once
	initErr     error
	initialized bool
}

type ControllerOption func(*Controller)

func WithControllerLogger(logger *zap.SugaredLogger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewController(driver Driver, opts ...ControllerOption) *Controller {
	c := &Controller{
		driver:   driver,
		registry: channel.NewRegistry(),
		logger:   zap.NewNop().Sugar(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Initialize sets up the driver. Only the first call reaches the hardware;
// later calls return the first result.
func (c *Controller) Initialize() error {
	c.initOnce.Do(func() {
		c.initErr = c.driver.Initialize()
		if c.initErr != nil {
			c.initErr = errors.Wrap(c.initErr, "failed to initialise PWM driver")
			c.logger.Errorw("Driver initialisation failed", "error", c.initErr)
			return
		}
		c.initialized = true
		c.logger.Info("PWM driver initialised")
	})
	return c.initErr
}

// NewServo returns an unattached servo on this controller.
func (c *Controller) NewServo() (*Servo, error) {
	if !c.initialized {
		return nil, ErrNotInitialized
	}
	return New(c.registry, c.driver, WithLogger(c.logger.Named("servo"))), nil
}

func (c *Controller) Registry() *channel.Registry {
	return c.registry
}

// Close turns off and releases every channel still claimed. Servos attached to
// them become stale and ignore further writes.
func (c *Controller) Close() error {
	var err error
	for _, ch := range c.registry.Claimed() {
		c.registry.Release(ch)
		if dErr := c.driver.Disable(ch); dErr != nil {
			err = multierr.Append(err, errors.Wrapf(dErr, "failed to disable channel %d", ch))
		}
	}
	return err
}
