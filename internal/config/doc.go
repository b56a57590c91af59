// Package config loads the moltest user configuration.
//
// The configuration lives in $XDG_CONFIG_HOME/moltest/config.yaml (or
// ~/.config/moltest/config.yaml) and is optional. Command line flags take
// precedence over every value here.
//
//	roles_path: roles
//	parallel: 4
//	ignore:
//	  - build
//	  - "*.bak"
//	command: ["molecule", "test", "-s", "{scenario}"]
//	plugins:
//	  - name: log
//	  - name: notify
//	    command: ["./scripts/notify.sh"]
//	    timeout: 10s
//	history:
//	  enabled: true
package config
