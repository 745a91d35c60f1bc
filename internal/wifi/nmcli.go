package wifi

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner runs an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// NMCLIAssociator joins networks through NetworkManager's command line client.
type NMCLIAssociator struct {
	Path string
	Run  CommandRunner
}

// NewNMCLIAssociator returns an associator that runs the nmcli binary at path
// (looked up in PATH when empty).
func NewNMCLIAssociator(path string) *NMCLIAssociator {
	if path == "" {
		path = "nmcli"
	}
	return &NMCLIAssociator{Path: path, Run: execRunner}
}

func (n *NMCLIAssociator) Associate(ctx context.Context, iface, ssid, password string) error {
	args := []string{"device", "wifi", "connect", ssid}
	if password != "" {
		args = append(args, "password", password)
	}
	args = append(args, "ifname", iface)

	out, err := n.Run(ctx, n.Path, args...)
	if err == nil {
		return nil
	}

	msg := strings.TrimSpace(string(out))
	switch {
	case strings.Contains(msg, "Secrets were required"),
		strings.Contains(msg, "property is invalid"):
		return fmt.Errorf("%w: %s", ErrBadAuth, msg)
	case strings.Contains(msg, "No network with SSID"):
		return fmt.Errorf("%w: %s", ErrNoNetwork, msg)
	}
	if msg == "" {
		return fmt.Errorf("nmcli: %w", err)
	}
	return fmt.Errorf("nmcli: %w: %s", err, msg)
}
