package user

import (
	"fmt"
	"regexp"
	"strings"
)

// Phone is a normalized local Indonesian phone number (08xxxxxxxx form).
type Phone string

var phoneDigitsRe = regexp.MustCompile(`^[0-9]{9,14}$`)

// NewPhone normalizes +62/62/0 prefixed input into the local 08 form.
func NewPhone(raw string) (Phone, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")

	switch {
	case strings.HasPrefix(s, "+62"):
		s = "0" + s[3:]
	case strings.HasPrefix(s, "62") && len(s) > 9:
		s = "0" + s[2:]
	}

	if !strings.HasPrefix(s, "08") {
		return "", fmt.Errorf("phone number must start with 08 after normalization: %q", raw)
	}
	if !phoneDigitsRe.MatchString(s) {
		return "", fmt.Errorf("phone number contains invalid characters or length: %q", raw)
	}

	return Phone(s), nil
}

func (p Phone) String() string {
	return string(p)
}
