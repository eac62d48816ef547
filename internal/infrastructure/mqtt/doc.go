// Package mqtt provides MQTT client connectivity for the birdhouse daemon.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// The motion detector and the DHT22 driver run as separate processes and
// publish onto the broker; the daemon subscribes to them and publishes outlet
// state and weather samples back for dashboards.
//
//	Motion detector ─┐                    ┌─▶ {prefix}/outlet/{id}/state
//	DHT22 driver ────┼─▶ MQTT Broker ◀─▶ birdhouse ─▶ {prefix}/weather
//	                 │                    └─▶ {prefix}/system/status (LWT)
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().Motion(), 1,
//	    func(topic string, payload []byte) error {
//	        inputs.SignalMotion()
//	        return nil
//	    })
package mqtt
