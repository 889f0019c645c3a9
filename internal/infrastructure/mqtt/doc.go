// Package mqtt provides MQTT client connectivity for lumen-core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// MQTT is lumen's external command and event surface. Home automation
// systems publish fixture commands to lumen/command/device/+ and
// consume settled state and protocol events in return; the DMX wire
// protocols stay fully internal.
//
//	Automation / UI ↔ MQTT Broker ↔ lumen-core ↔ Art-Net / sACN nodes
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all fixture commands
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish settled state
//	topic := mqtt.Topics{}.DeviceState("spot-kitchen-1")
//	client.Publish(topic, []byte(`{"on":true,"brightness":0.8}`), 1, true)
package mqtt
