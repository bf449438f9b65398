// Package config manages user-level settings stored at ~/.edkit/config.yaml.
// Values are resolved through Viper in this order: command-line flags bound
// by the cli package, EDKIT_* environment variables, the config file, and
// finally the defaults registered here.
package config
