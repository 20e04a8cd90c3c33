/*
Package config loads server configuration from the environment.

Every setting has an environment variable (see the envconfig tags on the
Config structs). CONFIG_FILE may point at a flat .yaml or .toml file keyed by
the same variable names; the environment wins over the file, and command-line
flags in cmd/server win over both.

	PORT: 4444
	BRIDGE_TIMEOUT: 10s
	BROWSER_CMD: chromium
	BROWSER_ARGS: [--headless, --proxy-server=http://localhost:4444]
*/
package config
