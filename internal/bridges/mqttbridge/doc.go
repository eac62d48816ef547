// Package mqttbridge connects the birdhouse control loop to the MQTT broker.
//
// Inbound, it subscribes to the motion detector and the sensor driver topics
// (DHT22 air, DS18B20 water) and hands their events to a Sink, the control
// loop inputs. Handlers never touch the store or the GPIO lines.
//
// Outbound, it publishes retained outlet levels and stored sensor samples
// from a single worker goroutine so the control loop never blocks on the
// broker. When the outbound queue is full, messages are dropped and counted.
package mqttbridge
