// Package config handles loading and validating the fan bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Default values from struct tags
//   - Overriding with GRAYLOGIC_FAN_* environment variables
//   - Validation of required fields, including the device token
//
// Security Considerations:
//   - The fan token grants full control of the device; prefer
//     GRAYLOGIC_FAN_FAN_TOKEN over writing it to the file
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Fan.Address)
package config
