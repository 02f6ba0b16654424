package resolver

import (
	"net/netip"
	"strings"
)

// Family is an IP address family.
type Family int

const (
	IPv4 Family = iota
	IPv6
)

func (f Family) String() string {
	if f == IPv6 {
		return "ipv6"
	}
	return "ipv4"
}

// Label is the human name used in log lines.
func (f Family) Label() string {
	if f == IPv6 {
		return "IPv6"
	}
	return "IPv4"
}

// Matches reports whether addr belongs to the family.
func (f Family) Matches(addr netip.Addr) bool {
	if f == IPv6 {
		return addr.Is6() && !addr.Is4In6()
	}
	return addr.Is4()
}

// Families returns the enabled families in resolution order.
func Families(v4, v6 bool) []Family {
	var out []Family
	if v4 {
		out = append(out, IPv4)
	}
	if v6 {
		out = append(out, IPv6)
	}
	return out
}

// Tier is an endpoint's position in the fallback order.
type Tier int

const (
	Primary Tier = iota
	Secondary
)

func (t Tier) String() string {
	if t == Secondary {
		return "secondary"
	}
	return "primary"
}

// AddressSet holds at most one address per family, IPv4 first.
type AddressSet []netip.Addr

// Equal compares as sets; order does not matter.
func (s AddressSet) Equal(other AddressSet) bool {
	a, b := s.set(), other.set()
	if len(a) != len(b) {
		return false
	}
	for addr := range a {
		if _, ok := b[addr]; !ok {
			return false
		}
	}
	return true
}

func (s AddressSet) set() map[netip.Addr]struct{} {
	m := make(map[netip.Addr]struct{}, len(s))
	for _, a := range s {
		m[a] = struct{}{}
	}
	return m
}

// Strings returns the addresses in set order.
func (s AddressSet) Strings() []string {
	out := make([]string, len(s))
	for i, a := range s {
		out[i] = a.String()
	}
	return out
}

func (s AddressSet) String() string {
	return "[" + strings.Join(s.Strings(), " ") + "]"
}

// ByFamily maps family name to address, for metrics labels.
func (s AddressSet) ByFamily() map[string]string {
	m := make(map[string]string, len(s))
	for _, a := range s {
		if IPv6.Matches(a) {
			m[IPv6.String()] = a.String()
		} else {
			m[IPv4.String()] = a.String()
		}
	}
	return m
}
