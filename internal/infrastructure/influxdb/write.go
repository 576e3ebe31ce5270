package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by castbridge.
const (
	MeasurementState   = "accessory_state"
	MeasurementCommand = "accessory_command"
)

// WriteAccessoryState records a published accessory state. volume is nil
// while the secondary device is disconnected and is then left out of the
// point rather than written as zero.
func (c *Client) WriteAccessoryState(accessory string, powerOn bool, volume *int, secondary string) {
	if !c.live.Load() {
		return
	}
	c.writeAPI.WritePoint(accessoryStatePoint(accessory, powerOn, volume, secondary, time.Now()))
}

// WriteCommand records the outcome and duration of a host command.
func (c *Client) WriteCommand(accessory, command string, ok bool, duration time.Duration) {
	if !c.live.Load() {
		return
	}
	c.writeAPI.WritePoint(commandPoint(accessory, command, ok, duration, time.Now()))
}

func accessoryStatePoint(accessory string, powerOn bool, volume *int, secondary string, ts time.Time) *write.Point {
	fields := map[string]any{
		"power_on": powerOn,
	}
	if volume != nil {
		fields["volume"] = *volume
	}

	return write.NewPoint(
		MeasurementState,
		map[string]string{
			"accessory": accessory,
			"secondary": secondary,
		},
		fields,
		ts,
	)
}

func commandPoint(accessory, command string, ok bool, duration time.Duration, ts time.Time) *write.Point {
	status := "completed"
	if !ok {
		status = "failed"
	}

	return write.NewPoint(
		MeasurementCommand,
		map[string]string{
			"accessory": accessory,
			"command":   command,
			"status":    status,
		},
		map[string]any{
			"duration_ms": duration.Milliseconds(),
		},
		ts,
	)
}
