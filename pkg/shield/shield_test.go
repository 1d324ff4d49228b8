package shield

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPinNumber(t *testing.T) {
	for _, tc := range []struct {
		pin Pin
		n   int
	}{
		{"0", 0},
		{"13", 13},
		{"A0", 14},
		{"a5", 19},
		{" 7 ", 7},
	} {
		n, err := tc.pin.Number()
		require.NoError(t, err, "pin %q", tc.pin)
		assert.Equal(t, tc.n, n, "pin %q", tc.pin)
	}

	for _, bad := range []Pin{"", "A6", "-1", "D3", "A"} {
		_, err := bad.Number()
		assert.Error(t, err, "pin %q", bad)
	}
}

func TestI2CShield(t *testing.T) {
	s, err := Lookup(NameI2C)
	require.NoError(t, err)
	require.NoError(t, s.Validate())
	assert.True(t, s.I2CServo)
	assert.False(t, s.EnablePin)
	assert.Equal(t, 16, s.NumberOfFeeders())

	for slot := 0; slot < s.NumberOfFeeders(); slot++ {
		ch, err := s.Channel(slot)
		require.NoError(t, err)
		assert.Equal(t, slot, ch)
	}
	_, err = s.Channel(16)
	assert.Error(t, err)
	_, err = s.Channel(-1)
	assert.Error(t, err)
}

func TestUnoShield(t *testing.T) {
	s, err := Lookup("UNO")
	require.NoError(t, err)
	require.NoError(t, s.Validate())
	assert.Equal(t, 18, s.NumberOfFeeders())

	p, err := s.Pin(12)
	require.NoError(t, err)
	assert.Equal(t, Pin("A0"), p)

	// No PCA9685 on this board.
	_, err = s.Channel(0)
	assert.Error(t, err)
}

func TestLookupReturnsCopy(t *testing.T) {
	s, err := Lookup(NameI2C)
	require.NoError(t, err)
	s.PinMap[0] = "15"

	again, err := Lookup(NameI2C)
	require.NoError(t, err)
	assert.Equal(t, Pin("0"), again.PinMap[0])
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("sensor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "i2c, uno")
	assert.Equal(t, []string{"i2c", "uno"}, Names())
}

func TestParse(t *testing.T) {
	s, err := Parse([]byte(`
name: half-i2c
capabilities:
  i2c_servo: true
pin_map: [8, 9, 10, 11, 12, 13, 14, 15]
`))
	require.NoError(t, err)
	assert.Equal(t, "half-i2c", s.Name)
	assert.Equal(t, 8, s.NumberOfFeeders())
	ch, err := s.Channel(0)
	require.NoError(t, err)
	assert.Equal(t, 8, ch)
}

func TestParseRejectsBadShields(t *testing.T) {
	for name, doc := range map[string]string{
		"no name":       "pin_map: [1]",
		"empty map":     "name: x",
		"duplicate pin": "name: x\npin_map: [3, 4, 3]",
		"alias clash":   "name: x\npin_map: [14, A0]",
		"bad channel":   "name: x\ncapabilities: {i2c_servo: true}\npin_map: [0, 16]",
		"unknown field": "name: x\npin_map: [1]\nfeeders: 3",
	} {
		_, err := Parse([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte("name: custom\npin_map: [2, 3]\n"), 0644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []Pin{"2", "3"}, s.PinMap)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
