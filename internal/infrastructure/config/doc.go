// Package config handles loading and validating castbridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with CASTBRIDGE_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Accessory settings use the homebridge accessory field names (samsung.ip,
// chromecast.ip, send_delay) so existing accessory blocks can be pasted in.
// Durations in the accessory section are milliseconds.
//
// Security Considerations:
//   - Broker passwords and InfluxDB tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load(config.Path(flagPath))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Accessory.Name)
package config
