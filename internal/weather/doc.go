// Package weather validates DHT22 readings and keeps a rolling log of them.
//
// Ingest rejects readings the sensor driver flagged as bad or that carry a
// non-positive humidity or temperature, converts the temperature to the
// configured unit and stores the sample. Pruning of samples older than the
// retention horizon happens in the same transaction as the insert.
//
// The query side serves the HTTP API: the latest sample, samples within a
// named period (day, week, month) and descriptive statistics computed with
// gonum.
package weather
