package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDeviceState records one device's settled logical state.
//
// Called when an animation completes, not per frame, so cardinality and
// write volume stay low. The write is non-blocking; data is batched and
// sent asynchronously.
func (c *Client) WriteDeviceState(device string, on bool, brightness float64) {
	if !c.IsConnected() {
		return
	}

	onValue := 0
	if on {
		onValue = 1
	}

	point := write.NewPoint(
		"device_state",
		map[string]string{
			"device": device,
		},
		map[string]interface{}{
			"on":         onValue,
			"brightness": brightness,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteUniverseTransmit records transmit counters for one universe.
//
// Parameters:
//   - universe: Flat universe number (1-63999)
//   - transport: Wire protocol carrying the frames ("artnet" or "sacn")
//   - frames: Frames transmitted since the last sample
func (c *Client) WriteUniverseTransmit(universe uint16, transport string, frames int64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"universe_transmit",
		map[string]string{
			"universe":  strconv.FormatUint(uint64(universe), 10),
			"transport": transport,
		},
		map[string]interface{}{
			"frames": frames,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSourceCount records how many live input sources are contending
// for one universe. Spikes above one indicate priority arbitration.
func (c *Client) WriteSourceCount(universe uint16, sources int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"universe_sources",
		map[string]string{
			"universe": strconv.FormatUint(uint64(universe), 10),
		},
		map[string]interface{}{
			"sources": sources,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp,
// for data that arrives delayed.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
