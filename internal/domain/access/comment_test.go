package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComment_EncodeParse_RoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 45, 0, time.UTC)

	c := NewComment(StatusActive, "8b6f0d1e-1111-2222-3333-444455556666", "081234567890", "USER", "10.5.50.42", now)
	raw := c.Encode()

	assert.True(t, IsManaged(raw))

	parsed, ok := ParseComment(raw)
	require.True(t, ok)
	assert.Equal(t, c.UID, parsed.UID)
	assert.Equal(t, c.Phone, parsed.Phone)
	assert.Equal(t, StatusActive, parsed.Status)
	assert.Equal(t, "USER", parsed.Role)
	assert.Equal(t, "10.5.50.42", parsed.IP)
	assert.Equal(t, c.Date, parsed.Date)
	assert.Equal(t, c.Time, parsed.Time)
}

func TestComment_Encode_OmitsEmptyIP(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 45, 0, time.UTC)

	c := NewComment(StatusBlocked, "uid-1", "081234567890", "USER", "", now)
	raw := c.Encode()

	assert.NotContains(t, raw, "|ip=")

	parsed, ok := ParseComment(raw)
	require.True(t, ok)
	assert.Empty(t, parsed.IP)
	assert.Equal(t, StatusBlocked, parsed.Status)
}

func TestParseComment_RejectsForeign(t *testing.T) {
	_, ok := ParseComment("manual entry by operator")
	assert.False(t, ok)

	_, ok = ParseComment("someotherapp|uid=abc")
	assert.False(t, ok)
}

func TestExtractToken_KeyFamily(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		keys []string
		want string
	}{
		{name: "uid token", raw: "lpsaring|status=active|uid=abc-123|phone=0812", keys: []string{"uid", "user", "user_id"}, want: "abc-123"},
		{name: "legacy user token", raw: "hotspot user=def-456 manual", keys: []string{"uid", "user", "user_id"}, want: "def-456"},
		{name: "user_id token", raw: "x|user_id=ghi-789", keys: []string{"uid", "user", "user_id"}, want: "ghi-789"},
		{name: "key at start", raw: "uid=start-1|rest", keys: []string{"uid"}, want: "start-1"},
		{name: "no partial key match", raw: "lpsaring|xuid=nope", keys: []string{"uid"}, want: ""},
		{name: "missing", raw: "lpsaring|status=active", keys: []string{"phone"}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractToken(tt.raw, tt.keys...))
		})
	}
}
