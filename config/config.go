package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
)

// DefaultRuntimeDir is where the daemons place their unix sockets unless
// configured otherwise.
const DefaultRuntimeDir = "/var/run/gnunet"

// Config maps service names to the local endpoints their daemons listen on.
// It is consumed read-only by the protocol packages.
type Config struct {
	RuntimeDir string                     `yaml:"runtime_dir"`
	Services   map[string]ServiceEndpoint `yaml:"services"`
}

// ServiceEndpoint is one service's connection address. UnixPath wins when
// both are set; when neither is set the service falls back to the standard
// socket path under RuntimeDir.
type ServiceEndpoint struct {
	UnixPath string `yaml:"unix_path"`
	Address  string `yaml:"address"` // host:port
}

// Default returns a configuration that resolves every service to its
// standard unix socket under DefaultRuntimeDir.
func Default() *Config {
	return &Config{
		RuntimeDir: DefaultRuntimeDir,
		Services:   map[string]ServiceEndpoint{},
	}
}

// Endpoint resolves a service name to a dialable (network, address) pair.
func (c *Config) Endpoint(service string) (network, address string, err error) {
	if service == "" {
		return "", "", fmt.Errorf("service name cannot be empty")
	}

	svc := c.Services[service]
	switch {
	case svc.UnixPath != "":
		return "unix", svc.UnixPath, nil
	case svc.Address != "":
		if err := ValidateAddress(svc.Address); err != nil {
			return "", "", fmt.Errorf("service %q: %w", service, err)
		}
		return "tcp", svc.Address, nil
	default:
		dir := c.RuntimeDir
		if dir == "" {
			dir = DefaultRuntimeDir
		}
		return "unix", filepath.Join(dir, "gnunet-service-"+service+".sock"), nil
	}
}

// Validate checks every configured service endpoint.
func (c *Config) Validate() error {
	for name, svc := range c.Services {
		if svc.UnixPath != "" {
			continue
		}
		if svc.Address == "" {
			continue // standard socket path applies
		}
		if err := ValidateAddress(svc.Address); err != nil {
			return fmt.Errorf("service %q: %w", name, err)
		}
	}
	return nil
}

// ValidateAddress validates that an address is in valid host:port format.
// Returns an error if the address is invalid.
func ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address format %q: %w", addr, err)
	}

	if host == "" {
		return fmt.Errorf("host cannot be empty in address %q", addr)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port in address %q: %w", addr, err)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d in address %q", port, addr)
	}

	return nil
}
