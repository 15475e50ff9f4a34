package models

import "fmt"

// Axis identifies one logical channel of a sensor.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
	AxisT
)

// AxesPerSensor is the number of channels every sensor contributes to a
// record, in record order.
const AxesPerSensor = 4

var axisNames = [...]string{"X", "Y", "Z", "T"}

func (a Axis) String() string {
	if a >= 0 && int(a) < len(axisNames) {
		return axisNames[a]
	}
	return "?"
}

// Axes lists the record channels of a sensor in record order.
func Axes() [AxesPerSensor]Axis { return [AxesPerSensor]Axis{AxisX, AxisY, AxisZ, AxisT} }

// ChannelName returns the record field name of a channel, e.g. S3Z.
// Sensors are numbered from 1.
func ChannelName(sensor int, axis Axis) string {
	return fmt.Sprintf("S%d%s", sensor, axis)
}
