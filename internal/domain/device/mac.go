package device

import (
	"fmt"
	"regexp"
	"strings"
)

// MAC is a canonical hardware address in AA:BB:CC:DD:EE:FF form.
type MAC string

var macHexRe = regexp.MustCompile(`^[0-9A-F]{12}$`)

// ZeroMAC is the all-zero address some ARP entries report; never usable.
const ZeroMAC MAC = "00:00:00:00:00:00"

// NormalizeMAC canonicalizes colon, dash and Cisco dot notations.
func NormalizeMAC(raw string) (MAC, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.NewReplacer(":", "", "-", "", ".", "").Replace(s)

	if !macHexRe.MatchString(s) {
		return "", fmt.Errorf("invalid MAC address: %q", raw)
	}

	var b strings.Builder
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(s[i : i+2])
	}
	return MAC(b.String()), nil
}

func (m MAC) String() string {
	return string(m)
}

func (m MAC) IsZero() bool {
	return m == ZeroMAC
}
