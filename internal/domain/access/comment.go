package access

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lpsaring/lpsaring/internal/shared/biztime"
)

// ManagedPrefix marks router objects owned by this system. Entries whose
// comment does not start with it are never touched.
const ManagedPrefix = "lpsaring"

// Comment is the decoded form of a managed router comment.
//
// Wire format, pipe-delimited, field order fixed:
//
//	lpsaring|status=<s>|uid=<uuid>|phone=<08x>|role=<r>[|ip=<a.b.c.d>]|date=<YYYY-MM-DD>|time=<HH:MM:SS>
type Comment struct {
	Status Status
	UID    string
	Phone  string
	Role   string
	IP     string
	Date   string
	Time   string
}

// NewComment builds a managed comment stamped with the business-local
// date and time of now.
func NewComment(status Status, uid, phone, role, ip string, now time.Time) Comment {
	return Comment{
		Status: status,
		UID:    uid,
		Phone:  phone,
		Role:   role,
		IP:     ip,
		Date:   biztime.FormatDate(now),
		Time:   biztime.FormatClock(now),
	}
}

// Encode renders the bit-exact managed comment.
func (c Comment) Encode() string {
	var b strings.Builder
	b.WriteString(ManagedPrefix)
	fmt.Fprintf(&b, "|status=%s", c.Status)
	fmt.Fprintf(&b, "|uid=%s", c.UID)
	fmt.Fprintf(&b, "|phone=%s", c.Phone)
	fmt.Fprintf(&b, "|role=%s", c.Role)
	if c.IP != "" {
		fmt.Fprintf(&b, "|ip=%s", c.IP)
	}
	fmt.Fprintf(&b, "|date=%s", c.Date)
	fmt.Fprintf(&b, "|time=%s", c.Time)
	return b.String()
}

// IsManaged reports whether a raw comment belongs to this system.
func IsManaged(comment string) bool {
	return strings.HasPrefix(comment, ManagedPrefix)
}

// ParseComment decodes a managed comment. ok is false for foreign comments.
func ParseComment(raw string) (Comment, bool) {
	if !IsManaged(raw) {
		return Comment{}, false
	}

	c := Comment{
		Status: Status(ExtractToken(raw, "status")),
		UID:    ExtractToken(raw, "uid", "user", "user_id"),
		Phone:  ExtractToken(raw, "phone"),
		Role:   ExtractToken(raw, "role"),
		IP:     ExtractToken(raw, "ip"),
		Date:   ExtractToken(raw, "date"),
		Time:   ExtractToken(raw, "time"),
	}
	return c, true
}

var tokenRes = map[string]*regexp.Regexp{}

func tokenRe(key string) *regexp.Regexp {
	if re, ok := tokenRes[key]; ok {
		return re
	}
	re := regexp.MustCompile(`(?:^|[|\s])` + regexp.QuoteMeta(key) + `=([^|\s]+)`)
	tokenRes[key] = re
	return re
}

func init() {
	// Pre-compile the token family; the map is read-only afterwards.
	for _, key := range []string{"status", "uid", "user", "user_id", "phone", "role", "ip", "date", "time"} {
		tokenRe(key)
	}
}

// ExtractToken pulls the first value of any of the given keys out of a
// free-form comment, using the `key=value` token convention. All comment
// parsing in the system goes through here.
func ExtractToken(raw string, keys ...string) string {
	for _, key := range keys {
		if m := tokenRe(key).FindStringSubmatch(raw); m != nil {
			return m[1]
		}
	}
	return ""
}
