// Package config loads rulewalk settings from YAML.
//
// Values are resolved in three layers: built-in defaults, then the YAML
// file, then RULEWALK_* environment variables. Validate reports every
// problem at once rather than stopping at the first.
//
// The registry section picks the backend the walker is pointed at:
//
//	registry:
//	  backend: openhab   # or "local"
//	  service: org.eclipse.smarthome.automation.RuleRegistry
//
// Keep the openHAB token and broker password out of the file; set
// RULEWALK_OPENHAB_TOKEN and RULEWALK_MQTT_PASSWORD instead.
package config
