package ibus

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ibus-daemon writes its current bus address to
// <XDG_CONFIG_HOME>/ibus/bus/<machine-id>-<label>-<display>, where the
// label is the literal "unix" and <display> is the digit from $DISPLAY.
// The file looks like:
//
//	# This file is created by ibus-daemon, please do not modify it
//	IBUS_ADDRESS=unix:abstract=/tmp/dbus-8EeieDfT,guid=7542d73dce451c2461a044e24bc131f4
//	IBUS_DAEMON_PID=11140
//
// The path derivation must match ibus/src/ibusshare.c exactly or discovery
// silently finds nothing.
const sessionLabel = "unix"

var (
	displayPattern = regexp.MustCompile(`^:(\d)$`)
	addressPattern = regexp.MustCompile(`IBUS_ADDRESS=(.*),guid`)
)

// AddressResolver derives the running ibus-daemon's private bus address
// from the ambient environment and filesystem. It holds no connection
// state; Resolve is deterministic for a fixed environment.
type AddressResolver struct {
	// MachineIDPath is the D-Bus machine identity file, normally
	// /etc/machine-id.
	MachineIDPath string
}

// NewAddressResolver returns a resolver with the standard machine-id path.
func NewAddressResolver() *AddressResolver {
	return &AddressResolver{MachineIDPath: "/etc/machine-id"}
}

// Resolve locates the discovery file and extracts the bus address from it.
// The address is returned verbatim; it is not validated beyond the
// key=value extraction.
func (r *AddressResolver) Resolve() (string, error) {
	configDir, ok := os.LookupEnv("XDG_CONFIG_HOME")
	if !ok {
		return "", fmt.Errorf("%w: XDG_CONFIG_HOME", ErrMissingEnv)
	}

	rawID, err := os.ReadFile(r.MachineIDPath)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrIO, r.MachineIDPath, err)
	}
	machineID := strings.TrimSpace(string(rawID))

	display, ok := os.LookupEnv("DISPLAY")
	if !ok {
		// On sway $DISPLAY only appears once an xwayland client (such as
		// ibus) has started, which can be after the bar.
		return "", fmt.Errorf("%w: DISPLAY", ErrMissingEnv)
	}
	m := displayPattern.FindStringSubmatch(display)
	if m == nil {
		return "", fmt.Errorf("%w: DISPLAY %q does not match %q", ErrMalformedInput, display, displayPattern)
	}
	displayNumber := m[1]

	socketName := fmt.Sprintf("%s-%s-%s", machineID, sessionLabel, displayNumber)
	socketPath := filepath.Join(configDir, "ibus", "bus", socketName)

	contents, err := os.ReadFile(socketPath)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrIO, socketPath, err)
	}

	m = addressPattern.FindStringSubmatch(string(contents))
	if m == nil {
		return "", fmt.Errorf("%w: no IBUS_ADDRESS entry in %s", ErrMalformedInput, socketPath)
	}

	return m[1], nil
}
