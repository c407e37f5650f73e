package names

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		wantErr bool
	}{
		{"r1", false},
		{"123456789012345", false}, // exactly 15 bytes
		{"1234567890123456", true}, // 16 bytes
		{"", true},
		{"bad name", true},
		{"bad/name", true},
		{"ok-name_1", false},
	}
	for _, c := range cases {
		err := Validate(c.name)
		if c.wantErr {
			assert.Error(t, err, c.name)
		} else {
			assert.NoError(t, err, c.name)
		}
	}
}

func TestTruncateShortNameUnchanged(t *testing.T) {
	assert.Equal(t, "short", Truncate("short"))
}

func TestTruncateLongNameFitsAndIsDeterministic(t *testing.T) {
	long := strings.Repeat("a", 40)
	got := Truncate(long)
	require.LessOrEqual(t, len(got), MaxLen)
	assert.Equal(t, got, Truncate(long), "truncation must be deterministic")
}

func TestTruncateDifferentPrefixesDontCollide(t *testing.T) {
	a := Truncate(strings.Repeat("a", 40))
	b := Truncate(strings.Repeat("a", 39) + "b")
	assert.NotEqual(t, a, b)
}

func TestPeerNameDeterministic(t *testing.T) {
	taken := map[string]bool{}
	got := PeerName("r1", "eth0", taken)
	assert.Equal(t, got, PeerName("r1", "eth0", map[string]bool{}))
	assert.LessOrEqual(t, len(got), MaxLen)
}

func TestPeerNameResolvesCollision(t *testing.T) {
	base := PeerName("r1", "eth0", map[string]bool{})
	taken := map[string]bool{base: true}
	got := PeerName("r1", "eth0", taken)
	assert.NotEqual(t, base, got)
	assert.LessOrEqual(t, len(got), MaxLen)
}
