// Package influxdb mirrors birdhouse telemetry into InfluxDB.
//
// Three measurements are written:
//   - weather: humidity and temperature, tagged with the temperature unit
//   - water_temp: water temperature, tagged the same way
//   - outlet_state: the level written to each outlet, tagged with the pin
//     and the source of the change (startup, schedule or motion)
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	ingester := weather.NewIngester(repo, weather.WithMirror(client))
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Batch errors are delivered through SetOnError.
package influxdb
