package pca9685

import (
	"go.uber.org/zap"
	"periph.io/x/periph/conn/physic"
)

// Dummy returns a driver that only logs, for running without the hardware.
func Dummy(logger *zap.SugaredLogger) Interface {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &dummyPWM{logger: logger}
}

type dummyPWM struct {
	logger *zap.SugaredLogger
}

func (d *dummyPWM) Initialize() error {
	d.logger.Info("DPWM: Initialize")
	return nil
}

func (d *dummyPWM) SetPWMFreq(freq physic.Frequency) error {
	d.logger.Infof("DPWM: SetPWMFreq freq=%v", freq)
	return nil
}

func (d *dummyPWM) SetPWM(channel int, on, off uint16) error {
	d.logger.Infof("DPWM: SetPWM channel=%v on=%v off=%v", channel, on, off)
	return nil
}

func (d *dummyPWM) WriteMicroseconds(channel int, us int) error {
	d.logger.Infof("DPWM: WriteMicroseconds channel=%v us=%v", channel, us)
	return nil
}

func (d *dummyPWM) Disable(channel int) error {
	d.logger.Infof("DPWM: Disable channel=%v", channel)
	return nil
}

func (d *dummyPWM) Close() error {
	return nil
}
