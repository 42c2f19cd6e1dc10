package sys

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "abc...nop", TruncateCenter("abcdefghijklmnop", 9))
	assert.Equal(t, "Song - Band", TruncateWithPreserve("Song", 100, "", " - Band"))
}

func TestFormatClock(t *testing.T) {
	tests := map[time.Duration]string{
		0:                         "0:00",
		62 * time.Second:          "1:02",
		time.Hour + 5*time.Second: "1:00:05",
		-time.Second:              "0:00",
		1500 * time.Millisecond:   "0:02",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatClock(in), "input %s", in)
	}
}

func TestFormatProgress(t *testing.T) {
	assert.Equal(t, "[1:02/3:45]", FormatProgress(62*time.Second, 225*time.Second))
	assert.Equal(t, "[1:02]", FormatProgress(62*time.Second, 0))
}

func TestFormatETA(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "now", FormatETA(now, 0))
	assert.Equal(t, "3 minutes from now", FormatETA(now, 3*time.Minute))
}

func TestPluralAndLines(t *testing.T) {
	assert.Equal(t, "song", Plural(1, "song", "songs"))
	assert.Equal(t, "songs", Plural(3, "song", "songs"))
	assert.Equal(t, "1,234", FormatCount(1234))
	assert.Equal(t, "a\nb", Lines("a", "", "b"))
}
