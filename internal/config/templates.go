package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "deployment", "deploy":
		return deploymentTemplate, nil
	case "service", "serve":
		return serviceTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const deploymentTemplate = `deployer = "deployer"
owner = "owner"
controller = "admin"

[token_a]
symbol = "AAA"
decimals = 18

[token_b]
symbol = "BBB"
decimals = 18

[pool]
basis = "500"
reserve0 = "1000000"
reserve1 = "1000000"

[spiker]
lock_duration = "24h"
policy = "stop"
preauthorize_controller = true

[vault]
enabled = false
rate_numerator = "3"
rate_denominator = "2"
opens_in = "0s"
duration = "168h"
funding = "1000000"

[vault.old_asset]
symbol = "OLD"
decimals = 18

[vault.new_asset]
symbol = "NEW"
decimals = 18

[[balances]]
account = "owner"
token_a = "100000"
token_b = "100000"
`

const serviceTemplate = `name = "spikectl"
addr = ":9300"
cors_origins = ["http://localhost:3000"]
auth_token = "temp-auth-key"
deployment = "deployment.toml"
journal = "spikectl.db"
`
