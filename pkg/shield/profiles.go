package shield

const (
	NameI2C = "i2c"
	NameUno = "uno"
)

func init() {
	// 16 feeders on a PCA9685 servo board; slot N drives PWM channel N.
	register(&Shield{
		Name: NameI2C,
		Capabilities: Capabilities{
			I2CServo: true,
		},
		PinMap: []Pin{
			"0", "1", "2", "3", "4", "5", "6", "7",
			"8", "9", "10", "11", "12", "13", "14", "15",
		},
	})

	// Servos wired straight to an Arduino Uno.
	register(&Shield{
		Name: NameUno,
		PinMap: []Pin{
			"2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12", "13",
			"A0", "A1", "A2", "A3", "A4", "A5",
		},
	})
}
