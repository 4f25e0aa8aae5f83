// Package config loads the JSON configuration of the trajectory toolkit.
package config
