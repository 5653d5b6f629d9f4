package config

import "time"

// SetDefaults fills unset host fields from the global section and then from
// the package defaults. It modifies inv in place.
func SetDefaults(inv *Inventory) {
	if inv == nil {
		return
	}
	if inv.Global.Port == 0 {
		inv.Global.Port = DefaultPort
	}
	if inv.Global.Timeout == "" {
		inv.Global.Timeout = DefaultTimeout.String()
	}

	for i := range inv.Hosts {
		host := &inv.Hosts[i]
		if host.Name == "" {
			host.Name = host.Host
		}
		if host.Port == 0 {
			host.Port = inv.Global.Port
		}
		if host.User == "" {
			host.User = inv.Global.User
		}
		if host.Timeout == "" {
			host.Timeout = inv.Global.Timeout
		}
		if host.Password == "" && host.PrivateKeyPath == "" {
			host.PrivateKeyPath = inv.Global.PrivateKeyPath
		}
		if host.KnownHostsFile == "" {
			host.KnownHostsFile = inv.Global.KnownHostsFile
		}

		if b := host.Bastion; b != nil {
			if b.Port == 0 {
				b.Port = DefaultPort
			}
			if b.User == "" {
				b.User = host.User
			}
			if b.KnownHostsFile == "" {
				b.KnownHostsFile = host.KnownHostsFile
			}
		}
	}
}

// timeout parses the host timeout, falling back to DefaultTimeout when unset.
func (h *HostSpec) timeout() (time.Duration, error) {
	if h.Timeout == "" {
		return DefaultTimeout, nil
	}
	return time.ParseDuration(h.Timeout)
}
