package config

import (
	"fmt"
	"strings"
)

// ValidationErrors collects every problem found in an inventory.
type ValidationErrors struct {
	Errors []string
}

func (v *ValidationErrors) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

func (v *ValidationErrors) Error() string {
	return strings.Join(v.Errors, "; ")
}

func (v *ValidationErrors) IsEmpty() bool {
	return len(v.Errors) == 0
}

// Validate checks a defaulted inventory. Every message names the host it concerns.
func Validate(inv *Inventory) error {
	verrs := &ValidationErrors{}
	if inv == nil {
		verrs.Add("inventory is nil")
		return verrs
	}
	if len(inv.Hosts) == 0 {
		verrs.Add("hosts: at least one host must be defined")
	}

	seen := make(map[string]bool, len(inv.Hosts))
	for i := range inv.Hosts {
		host := &inv.Hosts[i]
		prefix := fmt.Sprintf("hosts[%d:%s]", i, host.Name)

		if host.Host == "" {
			verrs.Add("%s.host: cannot be empty", prefix)
		}
		if host.Name != "" {
			if seen[host.Name] {
				verrs.Add("%s.name: is duplicated", prefix)
			}
			seen[host.Name] = true
		}
		if host.User == "" {
			verrs.Add("%s.user: cannot be empty (set it on the host or in global)", prefix)
		}
		if host.Port <= 0 || host.Port > 65535 {
			verrs.Add("%s.port: %d is out of range", prefix, host.Port)
		}
		if host.Password != "" && host.PrivateKeyPath != "" {
			verrs.Add("%s: password and privateKeyPath are mutually exclusive", prefix)
		}
		if host.Password == "" && host.PrivateKeyPath == "" {
			verrs.Add("%s: one of password or privateKeyPath is required", prefix)
		}
		if d, err := host.timeout(); err != nil {
			verrs.Add("%s.timeout: %v", prefix, err)
		} else if d <= 0 {
			verrs.Add("%s.timeout: must be positive", prefix)
		}

		if b := host.Bastion; b != nil {
			if b.Host == "" {
				verrs.Add("%s.bastion.host: cannot be empty", prefix)
			}
			if b.Port <= 0 || b.Port > 65535 {
				verrs.Add("%s.bastion.port: %d is out of range", prefix, b.Port)
			}
			if (b.Password == "") == (b.PrivateKeyPath == "") {
				verrs.Add("%s.bastion: exactly one of password or privateKeyPath is required", prefix)
			}
		}
	}

	if verrs.IsEmpty() {
		return nil
	}
	return verrs
}
