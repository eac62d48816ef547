// Package watertemp keeps a rolling log of DS18B20 water temperature readings.
//
// Readings arrive in degrees Celsius on the sensor/water MQTT topic. Ingest
// rejects values outside the sensor's rated range, converts to the configured
// unit and stores the sample, pruning anything older than the retention
// horizon in the same transaction.
//
// Query windows start at local midnight: daily at today's, weekly at the
// midnight seven days back and monthly at the midnight one month back.
package watertemp
