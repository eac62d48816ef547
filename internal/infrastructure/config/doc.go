// Package config handles loading and validating birdhouse configuration.
//
// This package manages:
//   - Loading configuration from YAML files (JSON files load too, so the
//     original birdhouse.json keeps working)
//   - Locating the file when no path is given
//   - Overriding with BIRDHOUSE_* environment variables
//   - Validation of required fields and ranges
//
// Usage:
//
//	path, err := config.Locate(flagPath)
//	if err != nil {
//	    return err
//	}
//	cfg, err := config.Load(path)
package config
