// Package config loads and validates the node configuration.
//
// Values are resolved in order: built-in defaults, the YAML file, then
// GRAYNODE_* environment variables. Validate runs last and reports every
// problem at once.
//
// Credentials (MQTT password, InfluxDB token) should come from the
// environment rather than the file.
//
// Usage:
//
//	cfg, err := config.Load(config.PathFromEnv())
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Device.Name, cfg.MQTT.BrokerURL())
package config
