// Package hls parses and serializes the subset of M3U8 used by the
// harvest pipeline: master (multivariant) playlists produced per recording
// slice and their per-resolution media playlists.
package hls

import (
	"fmt"
	"strings"
)

// MasterManifest is a parsed multivariant playlist.
type MasterManifest struct {
	Version  int
	Variants []VariantStream
}

// VariantStream is one EXT-X-STREAM-INF entry of a master manifest.
// FrameRate and Codecs are kept verbatim so re-serialization matches the
// source encoder's formatting.
type VariantStream struct {
	Bandwidth        int
	AverageBandwidth int
	Width            int
	Height           int
	FrameRate        string
	Codecs           string
	URI              string
}

// MediaManifest is a parsed media (per-resolution) playlist.
type MediaManifest struct {
	Version        int
	TargetDuration int
	PlaylistType   string
	MediaSequence  int
	Segments       []Segment
}

// Segment is one EXTINF entry: duration in seconds and the URI on the
// following line, relative to the playlist location.
type Segment struct {
	Duration float64
	URI      string
}

// StreamInfTag renders the EXT-X-STREAM-INF line for the variant.
// Optional attributes absent from the source are omitted.
func (v VariantStream) StreamInfTag() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("#EXT-X-STREAM-INF:BANDWIDTH=%d", v.Bandwidth))
	if v.AverageBandwidth > 0 {
		b.WriteString(fmt.Sprintf(",AVERAGE-BANDWIDTH=%d", v.AverageBandwidth))
	}
	b.WriteString(fmt.Sprintf(",RESOLUTION=%dx%d", v.Width, v.Height))
	if v.FrameRate != "" {
		b.WriteString(",FRAME-RATE=" + v.FrameRate)
	}
	if v.Codecs != "" {
		b.WriteString(`,CODECS="` + v.Codecs + `"`)
	}
	return b.String()
}

// ExtInfTag renders the EXTINF line for the segment. Durations carry exactly
// three decimal digits; players downstream key off that formatting.
func (s Segment) ExtInfTag() string {
	return fmt.Sprintf("#EXTINF:%.3f,", s.Duration)
}
