package serialport

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// Arduino Uno USB identifiers; the transceiver enumerates as one.
const (
	DefaultVID uint16 = 0x2341
	DefaultPID uint16 = 0x0043
)

// ErrPortNotFound is returned by FindPort when no attached device matches.
var ErrPortNotFound = errors.New("serial port not found")

// Open opens a hardware serial port and applies the read timeout.
func Open(path string, opts PortOptions) (Port, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := port.SetReadTimeout(opts.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", path, err)
	}
	return port, nil
}

// Lister enumerates attached USB serial ports.
type Lister func() ([]*enumerator.PortDetails, error)

// FindPort returns the path of the first USB serial port whose vendor and
// product ids match.
func FindPort(list Lister, vid, pid uint16) (string, error) {
	if list == nil {
		list = enumerator.GetDetailedPortsList
	}
	ports, err := list()
	if err != nil {
		return "", fmt.Errorf("enumerate serial ports: %w", err)
	}
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		if matchID(p.VID, vid) && matchID(p.PID, pid) {
			return p.Name, nil
		}
	}
	return "", fmt.Errorf("%w: usb %04x:%04x", ErrPortNotFound, vid, pid)
}

// matchID compares an enumerator hex id string such as "2341" to want.
func matchID(s string, want uint16) bool {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 16)
	return err == nil && uint16(v) == want
}
