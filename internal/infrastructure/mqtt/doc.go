// Package mqtt connects rulewalk to the Gray Logic MQTT bus.
//
// Two kinds of traffic flow through it:
//   - run requests for rules held in the local registry, published to
//     graylogic/core/rule/{uid}/run
//   - walk step events, published to graylogic/core/rulewalk/{walk_id}/{step}
//     and followed by the watch command
//
// The client keeps a retained online/offline record on graylogic/system/status,
// with a last-will so an unexpected disconnect is visible to other services.
// Subscriptions are replayed after paho reconnects.
//
// # Security
//
// Enable TLS (mqtt.broker.tls) and broker credentials outside the lab. The
// password should come from RULEWALK_MQTT_PASSWORD rather than the YAML file.
package mqtt
