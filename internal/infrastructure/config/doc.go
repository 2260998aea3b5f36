// Package config handles loading and validating Gray Logic Shelly configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (device passwords, MQTT passwords, tokens) should be set
//     via environment variables
//   - The config file should have restricted permissions (0600)
//   - The JWT secret must be set before the API is enabled
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Registry.StaleTime)
//
// Durations (registry.stale_time, device_http.timeout, journal.retention) use
// Go duration syntax in YAML, for example "8h" or "750ms".
package config
