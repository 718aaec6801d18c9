package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpoint(t *testing.T) {
	cfg := &Config{
		RuntimeDir: "/tmp/gnunet-test",
		Services: map[string]ServiceEndpoint{
			"identity": {UnixPath: "/tmp/identity.sock", Address: "127.0.0.1:2108"},
			"gns":      {Address: "127.0.0.1:2110"},
			"broken":   {Address: "not-an-address"},
		},
	}

	tests := []struct {
		name        string
		service     string
		wantNetwork string
		wantAddress string
		wantErr     bool
	}{
		{"unix path wins over address", "identity", "unix", "/tmp/identity.sock", false},
		{"tcp address", "gns", "tcp", "127.0.0.1:2110", false},
		{"unconfigured falls back to runtime dir", "peerinfo", "unix", "/tmp/gnunet-test/gnunet-service-peerinfo.sock", false},
		{"invalid address", "broken", "", "", true},
		{"empty service name", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			network, address, err := cfg.Endpoint(tt.service)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantNetwork, network)
			assert.Equal(t, tt.wantAddress, address)
		})
	}
}

func TestEndpoint_EmptyRuntimeDirUsesDefault(t *testing.T) {
	cfg := &Config{}
	network, address, err := cfg.Endpoint("gns")
	require.NoError(t, err)
	assert.Equal(t, "unix", network)
	assert.Equal(t, filepath.Join(DefaultRuntimeDir, "gnunet-service-gns.sock"), address)
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{"valid", "127.0.0.1:2086", false},
		{"valid hostname", "localhost:8080", false},
		{"valid ipv6", "[::1]:2086", false},
		{"empty", "", true},
		{"no port", "127.0.0.1", true},
		{"empty host", ":2086", true},
		{"port zero", "127.0.0.1:0", true},
		{"port too large", "127.0.0.1:70000", true},
		{"port not a number", "127.0.0.1:abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
runtime_dir: /run/gnunet-test
services:
  identity:
    unix_path: /run/gnunet-test/identity.sock
  gns:
    address: 127.0.0.1:2110
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/run/gnunet-test", cfg.RuntimeDir)
	assert.Len(t, cfg.Services, 2)
	assert.Equal(t, "/run/gnunet-test/identity.sock", cfg.Services["identity"].UnixPath)
	assert.Equal(t, "127.0.0.1:2110", cfg.Services["gns"].Address)
}

func TestLoad_DefaultsRuntimeDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("services: {}\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultRuntimeDir, cfg.RuntimeDir)
}

func TestLoad_InvalidEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
services:
  gns:
    address: bogus
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("services: ["), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
