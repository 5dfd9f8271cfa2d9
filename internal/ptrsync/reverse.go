package ptrsync

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Prefix validation errors. The messages surface verbatim in API
// responses, so they keep their historical capitalized form.
var (
	ErrInvalidIPv4Prefix = errors.New("Invalid IPv4 PTR zone prefix length")
	ErrInvalidIPv6Prefix = errors.New("Invalid IPv6 PTR zone prefix length")
	ErrInvalidIPv4       = errors.New("Invalid IPv4 address")
	ErrInvalidIPv6       = errors.New("Invalid IPv6 address")
)

// ComputeReverseTarget maps an IP literal to its reverse zone name and
// the owner record name inside that zone. The address family is decided
// by the presence of a colon in the literal, so IPv4-mapped IPv6
// literals take the nibble path.
func ComputeReverseTarget(ip string, opts PrefixOptions) (ReverseTarget, error) {
	opts = opts.withDefaults()
	if strings.Contains(ip, ":") {
		return reverseTargetV6(ip, opts.IPv6PrefixLength)
	}
	return reverseTargetV4(ip, opts.IPv4PrefixLength)
}

func reverseTargetV4(ip string, prefix int) (ReverseTarget, error) {
	if prefix%8 != 0 || prefix < 8 || prefix > 32 {
		return ReverseTarget{IPVersion: 4}, ErrInvalidIPv4Prefix
	}
	octets, err := parseIPv4Octets(ip)
	if err != nil {
		return ReverseTarget{IPVersion: 4}, err
	}

	reversed := make([]string, 4)
	for i, o := range octets {
		reversed[3-i] = strconv.Itoa(int(o))
	}

	keep := prefix / 8
	zone := strings.Join(reversed[4-keep:], ".") + ".in-addr.arpa"
	record := "@"
	if keep < 4 {
		record = strings.Join(reversed[:4-keep], ".")
	}
	return ReverseTarget{IPVersion: 4, ZoneName: zone, RecordName: record}, nil
}

func reverseTargetV6(ip string, prefix int) (ReverseTarget, error) {
	if prefix%4 != 0 || prefix < 4 || prefix > 128 {
		return ReverseTarget{IPVersion: 6}, ErrInvalidIPv6Prefix
	}
	nibbles := expandIPv6Nibbles(ip)
	if nibbles == "" {
		return ReverseTarget{IPVersion: 6}, ErrInvalidIPv6
	}

	reversed := make([]string, 32)
	for i := 0; i < 32; i++ {
		reversed[31-i] = string(nibbles[i])
	}

	keep := prefix / 4
	zone := strings.Join(reversed[32-keep:], ".") + ".ip6.arpa"
	record := "@"
	if keep < 32 {
		record = strings.Join(reversed[:32-keep], ".")
	}
	return ReverseTarget{IPVersion: 6, ZoneName: zone, RecordName: record}, nil
}

// ComputeReverseZoneCIDR derives the network CIDR a reverse zone covers.
// Zone creation wants a network/prefix, not the arpa name.
func ComputeReverseZoneCIDR(ip string, opts PrefixOptions) (string, error) {
	opts = opts.withDefaults()
	if strings.Contains(ip, ":") {
		return reverseZoneCIDRV6(ip, opts.IPv6PrefixLength)
	}
	return reverseZoneCIDRV4(ip, opts.IPv4PrefixLength)
}

func reverseZoneCIDRV4(ip string, prefix int) (string, error) {
	if prefix%8 != 0 || prefix < 8 || prefix > 32 {
		return "", ErrInvalidIPv4Prefix
	}
	octets, err := parseIPv4Octets(ip)
	if err != nil {
		return "", err
	}
	for i := prefix / 8; i < 4; i++ {
		octets[i] = 0
	}
	return fmt.Sprintf("%d.%d.%d.%d/%d", octets[0], octets[1], octets[2], octets[3], prefix), nil
}

func reverseZoneCIDRV6(ip string, prefix int) (string, error) {
	if prefix%4 != 0 || prefix < 4 || prefix > 128 {
		return "", ErrInvalidIPv6Prefix
	}
	nibbles := expandIPv6Nibbles(ip)
	if nibbles == "" {
		return "", ErrInvalidIPv6
	}

	keep := prefix / 4
	masked := nibbles[:keep] + strings.Repeat("0", 32-keep)

	addr := make(net.IP, net.IPv6len)
	for i := 0; i < net.IPv6len; i++ {
		addr[i] = hexVal(masked[2*i])<<4 | hexVal(masked[2*i+1])
	}

	network := addr.String()
	if addr.To4() != nil {
		// A masked IPv4-mapped network would otherwise print as a
		// dotted quad; keep it in IPv6 textual form.
		network = formatHextets(masked)
	}
	return fmt.Sprintf("%s/%d", network, prefix), nil
}

// expandIPv6Nibbles expands an IPv6 literal into its 32 hex nibbles,
// handling "::" compression, an IPv4-mapped final group and a trailing
// zone index like "%eth0". Malformed input yields "".
func expandIPv6Nibbles(ip string) string {
	if i := strings.IndexByte(ip, '%'); i >= 0 {
		ip = ip[:i]
	}
	if ip == "" {
		return ""
	}

	var headPart, tailPart string
	compressed := false
	if i := strings.Index(ip, "::"); i >= 0 {
		compressed = true
		headPart, tailPart = ip[:i], ip[i+2:]
		if strings.Contains(tailPart, "::") {
			return ""
		}
	} else {
		headPart = ip
	}

	head, ok := parseHextetGroups(headPart, !compressed)
	if !ok {
		return ""
	}
	tail, ok := parseHextetGroups(tailPart, true)
	if !ok {
		return ""
	}

	var groups []uint16
	if compressed {
		gap := 8 - len(head) - len(tail)
		if gap < 1 {
			return ""
		}
		groups = append(groups, head...)
		groups = append(groups, make([]uint16, gap)...)
		groups = append(groups, tail...)
	} else {
		if len(head) != 8 {
			return ""
		}
		groups = head
	}

	var b strings.Builder
	b.Grow(32)
	for _, g := range groups {
		fmt.Fprintf(&b, "%04x", g)
	}
	return b.String()
}

// parseHextetGroups parses a colon-separated run of hextets. A group
// containing dots is an IPv4-mapped tail and is only legal as the final
// group of the whole address (allowV4Tail).
func parseHextetGroups(s string, allowV4Tail bool) ([]uint16, bool) {
	if s == "" {
		return nil, true
	}
	parts := strings.Split(s, ":")
	groups := make([]uint16, 0, len(parts)+1)
	for i, part := range parts {
		if part == "" {
			return nil, false
		}
		if strings.Contains(part, ".") {
			if !allowV4Tail || i != len(parts)-1 {
				return nil, false
			}
			octets, err := parseIPv4Octets(part)
			if err != nil {
				return nil, false
			}
			groups = append(groups,
				uint16(octets[0])<<8|uint16(octets[1]),
				uint16(octets[2])<<8|uint16(octets[3]))
			continue
		}
		if len(part) > 4 {
			return nil, false
		}
		v, err := strconv.ParseUint(part, 16, 16)
		if err != nil {
			return nil, false
		}
		groups = append(groups, uint16(v))
	}
	return groups, true
}

func parseIPv4Octets(ip string) ([4]byte, error) {
	var octets [4]byte
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return octets, ErrInvalidIPv4
	}
	v4 := parsed.To4()
	if v4 == nil {
		return octets, ErrInvalidIPv4
	}
	copy(octets[:], v4)
	return octets, nil
}

func hexVal(c byte) byte {
	if c >= 'a' {
		return c - 'a' + 10
	}
	return c - '0'
}

// formatHextets renders 32 nibbles as uncompressed colon-separated
// hextets with per-group leading zeros trimmed.
func formatHextets(nibbles string) string {
	groups := make([]string, 8)
	for i := 0; i < 8; i++ {
		g := strings.TrimLeft(nibbles[i*4:i*4+4], "0")
		if g == "" {
			g = "0"
		}
		groups[i] = g
	}
	return strings.Join(groups, ":")
}

// ToFQDN normalizes a record name into the absolute form below a zone.
// "@" or an empty name is the zone apex; names already absolute or
// already carrying the zone suffix keep their shape, trailing dot
// ensured.
func ToFQDN(recordName, zoneName string) string {
	zone := strings.TrimSuffix(zoneName, ".")
	if recordName == "" || recordName == "@" {
		return zone + "."
	}
	if strings.HasSuffix(recordName, ".") {
		return recordName
	}
	if strings.EqualFold(recordName, zone) ||
		strings.HasSuffix(strings.ToLower(recordName), "."+strings.ToLower(zone)) {
		return recordName + "."
	}
	return recordName + "." + zone + "."
}

// RelativeName relativizes an absolute owner name against its zone; the
// zone apex becomes "@". Names outside the zone are returned unchanged.
func RelativeName(owner, zoneName string) string {
	o := strings.TrimSuffix(owner, ".")
	z := strings.TrimSuffix(zoneName, ".")
	if strings.EqualFold(o, z) {
		return "@"
	}
	if strings.HasSuffix(strings.ToLower(o), "."+strings.ToLower(z)) {
		return o[:len(o)-len(z)-1]
	}
	return o
}

// hostnamesEqual compares two hostnames ignoring case and an optional
// trailing dot.
func hostnamesEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSuffix(a, "."), strings.TrimSuffix(b, "."))
}
