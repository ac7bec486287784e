package hls

import (
	"strings"
	"testing"
)

const sampleMaster = `#EXTM3U
#EXT-X-VERSION:6
#EXT-X-INDEPENDENT-SEGMENTS
#EXT-X-STREAM-INF:BANDWIDTH=1400000,AVERAGE-BANDWIDTH=1200000,RESOLUTION=960x540,FRAME-RATE=30.000,CODECS="avc1.640029,mp4a.40.2"
540p.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2800000,AVERAGE-BANDWIDTH=2400000,RESOLUTION=1280x720,FRAME-RATE=30.000,CODECS="avc1.640029,mp4a.40.2"
720p.m3u8
`

const sampleMedia = `#EXTM3U
#EXT-X-VERSION:6
#EXT-X-TARGETDURATION:4
#EXT-X-PLAYLIST-TYPE:EVENT
#EXT-X-MEDIA-SEQUENCE:2
#EXTINF:4.000000,
seg_00002.ts
#EXTINF:3.5,
seg_00003.ts
`

func TestParseMaster(t *testing.T) {
	m, err := ParseMaster(sampleMaster)
	if err != nil {
		t.Fatalf("ParseMaster: %v", err)
	}
	if m.Version != 6 {
		t.Errorf("version: got %d, want 6", m.Version)
	}
	if len(m.Variants) != 2 {
		t.Fatalf("variants: got %d, want 2", len(m.Variants))
	}

	v := m.Variants[0]
	if v.Bandwidth != 1400000 || v.AverageBandwidth != 1200000 {
		t.Errorf("bandwidth: got %d/%d", v.Bandwidth, v.AverageBandwidth)
	}
	if v.Width != 960 || v.Height != 540 {
		t.Errorf("resolution: got %dx%d, want 960x540", v.Width, v.Height)
	}
	if v.FrameRate != "30.000" {
		t.Errorf("frame rate: got %q", v.FrameRate)
	}
	// Quoted codec list contains a comma and must survive attribute splitting.
	if v.Codecs != "avc1.640029,mp4a.40.2" {
		t.Errorf("codecs: got %q", v.Codecs)
	}
	if v.URI != "540p.m3u8" {
		t.Errorf("uri: got %q", v.URI)
	}
	if m.Variants[1].Height != 720 || m.Variants[1].URI != "720p.m3u8" {
		t.Errorf("second variant: got %dp %q", m.Variants[1].Height, m.Variants[1].URI)
	}
}

func TestParseMaster_errors(t *testing.T) {
	cases := map[string]string{
		"missing_header":       "#EXT-X-VERSION:6\n",
		"missing_version":      "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1,RESOLUTION=2x2\na.m3u8\n",
		"no_variants":          "#EXTM3U\n#EXT-X-VERSION:6\n",
		"stream_inf_no_uri":    "#EXTM3U\n#EXT-X-VERSION:6\n#EXT-X-STREAM-INF:BANDWIDTH=1,RESOLUTION=2x2\n",
		"missing_bandwidth":    "#EXTM3U\n#EXT-X-VERSION:6\n#EXT-X-STREAM-INF:RESOLUTION=2x2\na.m3u8\n",
		"missing_resolution":   "#EXTM3U\n#EXT-X-VERSION:6\n#EXT-X-STREAM-INF:BANDWIDTH=1\na.m3u8\n",
		"malformed_resolution": "#EXTM3U\n#EXT-X-VERSION:6\n#EXT-X-STREAM-INF:BANDWIDTH=1,RESOLUTION=wide\na.m3u8\n",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseMaster(text); err == nil {
				t.Errorf("expected error for %s", name)
			}
		})
	}
}

func TestParseMedia(t *testing.T) {
	m, err := ParseMedia(sampleMedia)
	if err != nil {
		t.Fatalf("ParseMedia: %v", err)
	}
	if m.Version != 6 || m.TargetDuration != 4 {
		t.Errorf("header: version %d target duration %d", m.Version, m.TargetDuration)
	}
	if m.PlaylistType != "EVENT" {
		t.Errorf("playlist type: got %q", m.PlaylistType)
	}
	if m.MediaSequence != 2 {
		t.Errorf("media sequence: got %d, want 2", m.MediaSequence)
	}
	if len(m.Segments) != 2 {
		t.Fatalf("segments: got %d, want 2", len(m.Segments))
	}
	if m.Segments[0].Duration != 4.0 || m.Segments[0].URI != "seg_00002.ts" {
		t.Errorf("segment 0: got %v %q", m.Segments[0].Duration, m.Segments[0].URI)
	}
	if m.Segments[1].Duration != 3.5 || m.Segments[1].URI != "seg_00003.ts" {
		t.Errorf("segment 1: got %v %q", m.Segments[1].Duration, m.Segments[1].URI)
	}
}

func TestParseMedia_media_sequence_zero(t *testing.T) {
	text := strings.Replace(sampleMedia, "#EXT-X-MEDIA-SEQUENCE:2", "#EXT-X-MEDIA-SEQUENCE:0", 1)
	m, err := ParseMedia(text)
	if err != nil {
		t.Fatalf("ParseMedia: %v", err)
	}
	if m.MediaSequence != 0 {
		t.Errorf("media sequence: got %d, want 0", m.MediaSequence)
	}
}

func TestParseMedia_errors(t *testing.T) {
	cases := map[string]string{
		"missing_header":          strings.TrimPrefix(sampleMedia, "#EXTM3U\n"),
		"missing_version":         strings.Replace(sampleMedia, "#EXT-X-VERSION:6\n", "", 1),
		"missing_target_duration": strings.Replace(sampleMedia, "#EXT-X-TARGETDURATION:4\n", "", 1),
		"missing_playlist_type":   strings.Replace(sampleMedia, "#EXT-X-PLAYLIST-TYPE:EVENT\n", "", 1),
		"missing_media_sequence":  strings.Replace(sampleMedia, "#EXT-X-MEDIA-SEQUENCE:2\n", "", 1),
		"invalid_duration":        strings.Replace(sampleMedia, "#EXTINF:4.000000,", "#EXTINF:oops,", 1),
		"extinf_no_uri":           "#EXTM3U\n#EXT-X-VERSION:6\n#EXT-X-TARGETDURATION:4\n#EXT-X-PLAYLIST-TYPE:VOD\n#EXT-X-MEDIA-SEQUENCE:0\n#EXTINF:4.000,\n",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseMedia(text); err == nil {
				t.Errorf("expected error for %s", name)
			}
		})
	}
}

func TestParseMedia_crlf(t *testing.T) {
	text := strings.ReplaceAll(sampleMedia, "\n", "\r\n")
	m, err := ParseMedia(text)
	if err != nil {
		t.Fatalf("ParseMedia with CRLF: %v", err)
	}
	if len(m.Segments) != 2 {
		t.Errorf("segments: got %d, want 2", len(m.Segments))
	}
}
