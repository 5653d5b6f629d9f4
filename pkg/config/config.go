// Package config loads the host inventory used by the remoteify CLI.
package config

import "time"

const (
	DefaultPort    = 22
	DefaultTimeout = 30 * time.Second
)

// Inventory is the top-level configuration object, typically parsed from hosts.yaml.
type Inventory struct {
	Global GlobalSpec `yaml:"global,omitempty" toml:"global"`
	Hosts  []HostSpec `yaml:"hosts" toml:"hosts"`
}

// GlobalSpec holds values every host inherits unless it sets its own.
type GlobalSpec struct {
	User           string `yaml:"user,omitempty" toml:"user"`
	Port           int    `yaml:"port,omitempty" toml:"port"`
	Timeout        string `yaml:"timeout,omitempty" toml:"timeout"`
	PrivateKeyPath string `yaml:"privateKeyPath,omitempty" toml:"privateKeyPath"`
	KnownHostsFile string `yaml:"knownHostsFile,omitempty" toml:"knownHostsFile"`
}

// HostSpec describes one SSH target.
type HostSpec struct {
	Name           string       `yaml:"name" toml:"name"`
	Host           string       `yaml:"host" toml:"host"`
	Port           int          `yaml:"port,omitempty" toml:"port"`
	User           string       `yaml:"user,omitempty" toml:"user"`
	Password       string       `yaml:"password,omitempty" toml:"password"`
	PrivateKeyPath string       `yaml:"privateKeyPath,omitempty" toml:"privateKeyPath"`
	Passphrase     string       `yaml:"passphrase,omitempty" toml:"passphrase"`
	Timeout        string       `yaml:"timeout,omitempty" toml:"timeout"`
	KnownHostsFile string       `yaml:"knownHostsFile,omitempty" toml:"knownHostsFile"`
	Bastion        *BastionSpec `yaml:"bastion,omitempty" toml:"bastion"`
}

// BastionSpec is the jump host a HostSpec is reached through.
type BastionSpec struct {
	Host           string `yaml:"host" toml:"host"`
	Port           int    `yaml:"port,omitempty" toml:"port"`
	User           string `yaml:"user,omitempty" toml:"user"`
	Password       string `yaml:"password,omitempty" toml:"password"`
	PrivateKeyPath string `yaml:"privateKeyPath,omitempty" toml:"privateKeyPath"`
	Passphrase     string `yaml:"passphrase,omitempty" toml:"passphrase"`
	KnownHostsFile string `yaml:"knownHostsFile,omitempty" toml:"knownHostsFile"`
}

// Lookup returns the host whose name or address equals nameOrHost.
func (inv *Inventory) Lookup(nameOrHost string) (*HostSpec, bool) {
	for i := range inv.Hosts {
		if inv.Hosts[i].Name == nameOrHost {
			return &inv.Hosts[i], true
		}
	}
	for i := range inv.Hosts {
		if inv.Hosts[i].Host == nameOrHost {
			return &inv.Hosts[i], true
		}
	}
	return nil, false
}
