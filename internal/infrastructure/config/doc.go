// Package config loads and validates pixood configuration.
//
// Configuration is layered: hardcoded defaults, then the YAML file, then
// PIXOO_* environment variables. The PIXOO_DEVICES variable provides a
// registration shorthand for declaring devices without a config file.
package config
