package proc

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/stretchr/testify/assert"
)

func TestYtdlpTarget(t *testing.T) {
	r := NewYtdlpResolver(YtdlpOptions{})
	tests := []struct {
		in     string
		want   string
		search bool
	}{
		{"https://youtu.be/abc", "https://youtu.be/abc", false},
		{"<https://youtu.be/abc>", "https://youtu.be/abc", false},
		{"never gonna give you up", "ytsearch1:never gonna give you up", true},
		{"[YT] lofi beats", "ytsearch1:lofi beats", true},
		{"[ytm] lofi beats", "ytmsearch1:lofi beats", true},
		{"[YTM]   city pop ", "ytmsearch1:city pop", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, search := r.target(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.search, search)
		})
	}
}

func TestParseSeconds(t *testing.T) {
	tests := map[string]time.Duration{
		"212":  212 * time.Second,
		"90.5": 90*time.Second + 500*time.Millisecond,
		"NA":   0,
		"":     0,
		"-3":   0,
		" 60 ": time.Minute,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseSeconds(in), "input %q", in)
	}
}

func TestFirstNonNA(t *testing.T) {
	assert.Equal(t, "b", firstNonNA("NA", "", "b", "c"))
	assert.Empty(t, firstNonNA("NA"))
	assert.Equal(t, "", naToEmpty("NA"))
	assert.Equal(t, "x", naToEmpty("x"))
}

func TestClassify(t *testing.T) {
	base := errors.New("exit status 1")
	tests := []struct {
		name  string
		res   *ytdlp.Result
		err   error
		want  ErrorKind
		isCtx bool
	}{
		{"drm", &ytdlp.Result{Stderr: "ERROR: This video is DRM protected"}, base, UnsupportedReference, false},
		{"unsupported", &ytdlp.Result{Stderr: "ERROR: Unsupported URL: https://x"}, base, UnsupportedReference, false},
		{"other", &ytdlp.Result{Stderr: "ERROR: Video unavailable"}, base, ExtractionFailed, false},
		{"nil result", nil, base, ExtractionFailed, false},
		{"cancelled", nil, context.Canceled, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.res, tt.err, "ref")
			if tt.isCtx {
				assert.ErrorIs(t, err, context.Canceled)
				return
			}
			assert.Equal(t, tt.want, KindOf(err))
			assert.ErrorIs(t, err, base)
		})
	}
}

func TestSearchServiceUnknown(t *testing.T) {
	r := NewYtdlpResolver(YtdlpOptions{})
	_, err := r.SearchService(context.Background(), "myspace", "song", 5)
	assert.True(t, IsKind(err, InvalidArgument))
}

func TestScaleS16(t *testing.T) {
	samples := []int16{1000, -1000, 30000, -30000, 0}
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}

	scaleS16(data, 150)

	want := []int16{1500, -1500, 32767, -32768, 0}
	for i, w := range want {
		got := int16(binary.LittleEndian.Uint16(data[i*2:]))
		assert.Equal(t, w, got, "sample %d", i)
	}
}
