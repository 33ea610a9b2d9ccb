package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileFor(t *testing.T) {
	for _, mt := range []MediaType{MediaHLS, MediaDASH, MediaDirect} {
		p, err := ProfileFor(mt)
		require.NoError(t, err)
		assert.Equal(t, mt, p.MediaType())
	}

	_, err := ProfileFor(MediaType("torrent"))
	assert.Error(t, err)
}

func TestHLSProfile_BuildArgs(t *testing.T) {
	params := &StartParams{
		SessionID:  "s1",
		URL:        "https://cdn.example.com/master.m3u8",
		OutputPath: "/videos/clip.MP4",
		Headers:    []string{"Referer: https://example.com"},
	}

	args := HLSProfile{}.BuildArgs(params)

	assert.Equal(t, []string{
		"-hide_banner", "-y", "-stats",
		"-headers", "Referer: https://example.com",
		"-i", "https://cdn.example.com/master.m3u8",
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
		"-movflags", "+faststart",
		"/videos/clip.MP4",
	}, args)
}

func TestHLSProfile_BuildArgsNonMP4(t *testing.T) {
	params := &StartParams{
		SessionID:  "s1",
		URL:        "https://cdn.example.com/master.m3u8",
		OutputPath: "/videos/clip.ts",
	}

	args := HLSProfile{}.BuildArgs(params)
	assert.NotContains(t, args, "-movflags")
	assert.Equal(t, "/videos/clip.ts", args[len(args)-1])
}

func TestDASHProfile_BuildArgs(t *testing.T) {
	params := &StartParams{
		SessionID:  "s1",
		URL:        "https://cdn.example.com/manifest.mpd",
		OutputPath: "/videos/clip.mp4",
		ExtraArgs:  []string{"-map", "0"},
	}

	args := DASHProfile{}.BuildArgs(params)

	assert.Contains(t, args, "-movflags")
	// Extra args come after the fixed set, before the output path
	assert.Equal(t, []string{"-map", "0", "/videos/clip.mp4"}, args[len(args)-3:])
}

func TestDirectProfile_BuildArgs(t *testing.T) {
	params := &StartParams{
		SessionID:  "s1",
		URL:        "https://cdn.example.com/video.mp4",
		OutputPath: "/videos/clip.mp4",
	}

	args := DirectProfile{}.BuildArgs(params)
	assert.NotContains(t, args, "-bsf:a")
	assert.NotContains(t, args, "-movflags")
	assert.Equal(t, "/videos/clip.mp4", args[len(args)-1])
}

func TestValidateCommon(t *testing.T) {
	tests := []struct {
		name   string
		params StartParams
		wantOK bool
	}{
		{"valid", StartParams{SessionID: "s1", URL: "http://a", OutputPath: "/b"}, true},
		{"missing id", StartParams{URL: "http://a", OutputPath: "/b"}, false},
		{"missing url", StartParams{SessionID: "s1", OutputPath: "/b"}, false},
		{"missing output", StartParams{SessionID: "s1", URL: "http://a"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := HLSProfile{}.Validate(&tt.params)
			if tt.wantOK {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
