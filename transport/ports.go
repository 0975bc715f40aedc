package transport

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// PortRange is an inclusive range of local ports.
type PortRange struct {
	Low  uint16
	High uint16
}

// ParsePortRange parses "low-high". A single port "p" is a range of one.
func ParsePortRange(s string) (PortRange, error) {
	s = strings.TrimSpace(s)
	lowText, highText, found := strings.Cut(s, "-")
	if !found {
		highText = lowText
	}

	low, err := parsePort(lowText)
	if err != nil {
		return PortRange{}, fmt.Errorf("%w %q: %v", ErrInvalidPortRange, s, err)
	}
	high, err := parsePort(highText)
	if err != nil {
		return PortRange{}, fmt.Errorf("%w %q: %v", ErrInvalidPortRange, s, err)
	}
	if low > high {
		return PortRange{}, fmt.Errorf("%w %q: low port above high port", ErrInvalidPortRange, s)
	}

	return PortRange{Low: low, High: high}, nil
}

func parsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("port 0 is not allowed")
	}
	return uint16(n), nil
}

// MustParsePortRange is ParsePortRange for constants; it panics on error.
func MustParsePortRange(s string) PortRange {
	r, err := ParsePortRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Contains reports whether port lies in the range.
func (r PortRange) Contains(port uint16) bool {
	return port >= r.Low && port <= r.High
}

// Size is the number of ports in the range.
func (r PortRange) Size() int {
	return int(r.High) - int(r.Low) + 1
}

// Random picks a port uniformly from the range.
func (r PortRange) Random() uint16 {
	return r.Low + uint16(rand.IntN(r.Size()))
}

func (r PortRange) String() string {
	return fmt.Sprintf("%d-%d", r.Low, r.High)
}
