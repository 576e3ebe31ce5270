// Package influxdb records accessory telemetry in InfluxDB.
//
// Every state the host bus publishes is written to the accessory_state
// measurement, and every command outcome to accessory_command, so power and
// volume history can be graphed next to the commands that changed them.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteAccessoryState("living-room-tv", true, &volume, "connected")
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval, with millisecond precision and a service=castbridge tag.
// Background write errors go to the callback set with SetOnError.
package influxdb
