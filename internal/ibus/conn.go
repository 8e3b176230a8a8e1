package ibus

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// D-Bus names used by the IBus daemon.
const (
	busInterface = "org.freedesktop.IBus"
	busPath      = dbus.ObjectPath("/org/freedesktop/IBus")

	globalEngineProperty = "org.freedesktop.IBus.GlobalEngine"

	engineChangedMember = "GlobalEngineChanged"
	engineChangedSignal = busInterface + "." + engineChangedMember
)

// UnknownEngine is displayed when an engine descriptor cannot be coerced to
// a usable name. The read path degrades to this sentinel instead of failing.
const UnknownEngine = "??"

// Conn is a private, authenticated connection to the IBus daemon's own bus.
// The initial query and the listener each hold their own Conn; a Conn is
// never shared between goroutines.
type Conn struct {
	bus *dbus.Conn
}

// Dial opens and authenticates a private connection to the bus at the given
// address (as produced by AddressResolver.Resolve).
func Dial(address string) (*Conn, error) {
	bus, err := dbus.Connect(address)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", ErrConnection, address, err)
	}
	return &Conn{bus: bus}, nil
}

// GlobalEngine queries the daemon for the currently active engine and
// returns its name, or UnknownEngine if the descriptor cannot be coerced.
func (c *Conn) GlobalEngine() (string, error) {
	obj := c.bus.Object(busInterface, busPath)
	v, err := obj.GetProperty(globalEngineProperty)
	if err != nil {
		return "", fmt.Errorf("%w: get %s: %v", ErrQuery, globalEngineProperty, err)
	}
	return engineFromDesc(v.Value()), nil
}

// Subscribe registers a match for GlobalEngineChanged and returns the
// signal stream. The channel is closed when the connection dies.
func (c *Conn) Subscribe(buffer int) (<-chan *dbus.Signal, error) {
	err := c.bus.AddMatchSignal(
		dbus.WithMatchInterface(busInterface),
		dbus.WithMatchMember(engineChangedMember),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: add match: %v", ErrConnection, err)
	}
	ch := make(chan *dbus.Signal, buffer)
	c.bus.Signal(ch)
	return ch, nil
}

// Connected reports whether the underlying transport is still up.
func (c *Conn) Connected() bool {
	return c.bus.Connected()
}

// Close tears down the connection and closes any subscription channels.
func (c *Conn) Close() error {
	return c.bus.Close()
}

// engineFromDesc extracts the engine name from a GlobalEngine property
// value. The descriptor is an IBusEngineDesc struct:
//
//	["IBusEngineDesc", {attachments}, name, longname, description, language, ...]
//
// Field 2 (name, e.g. "xkb:us::eng") is what GlobalEngineChanged carries,
// so that is the field displayed. See ibus/src/ibusenginedesc.c for the
// full field list.
func engineFromDesc(v interface{}) string {
	if variant, ok := v.(dbus.Variant); ok {
		v = variant.Value()
	}
	fields, ok := v.([]interface{})
	if !ok || len(fields) < 3 {
		return UnknownEngine
	}
	field := fields[2]
	if variant, ok := field.(dbus.Variant); ok {
		field = variant.Value()
	}
	name, ok := field.(string)
	if !ok || name == "" {
		return UnknownEngine
	}
	return name
}

// engineFromSignal filters for the GlobalEngineChanged signal and extracts
// its first positional argument, the new engine name. Anything else on the
// stream is ignored.
func engineFromSignal(sig *dbus.Signal) (string, bool) {
	if sig == nil || sig.Name != engineChangedSignal {
		return "", false
	}
	if len(sig.Body) == 0 {
		return "", false
	}
	name, ok := sig.Body[0].(string)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}
