package hls

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	tagHeader         = "#EXTM3U"
	tagVersion        = "#EXT-X-VERSION:"
	tagStreamInf      = "#EXT-X-STREAM-INF:"
	tagTargetDuration = "#EXT-X-TARGETDURATION:"
	tagPlaylistType   = "#EXT-X-PLAYLIST-TYPE:"
	tagMediaSequence  = "#EXT-X-MEDIA-SEQUENCE:"
	tagExtInf         = "#EXTINF:"
)

// ParseMaster parses a multivariant playlist. Missing or malformed required
// tags fail immediately; a master with no variant streams is an error.
func ParseMaster(text string) (*MasterManifest, error) {
	lines := splitLines(text)
	if len(lines) == 0 || lines[0] != tagHeader {
		return nil, fmt.Errorf("master manifest: missing %s header", tagHeader)
	}

	m := &MasterManifest{Version: -1}
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, tagVersion):
			v, err := strconv.Atoi(strings.TrimPrefix(line, tagVersion))
			if err != nil {
				return nil, fmt.Errorf("master manifest: invalid version %q", line)
			}
			m.Version = v
		case strings.HasPrefix(line, tagStreamInf):
			variant, err := parseStreamInf(strings.TrimPrefix(line, tagStreamInf))
			if err != nil {
				return nil, err
			}
			uri, next := nextURILine(lines, i+1)
			if uri == "" {
				return nil, fmt.Errorf("master manifest: stream-inf without playlist URI")
			}
			variant.URI = uri
			i = next
			m.Variants = append(m.Variants, variant)
		}
	}

	if m.Version < 0 {
		return nil, fmt.Errorf("master manifest: missing %s", strings.TrimSuffix(tagVersion, ":"))
	}
	if len(m.Variants) == 0 {
		return nil, fmt.Errorf("master manifest: no variant streams")
	}
	return m, nil
}

// ParseMedia parses a media (per-resolution) playlist. The harvested live
// playlists always carry version, target duration, playlist type and media
// sequence, so all four are required.
func ParseMedia(text string) (*MediaManifest, error) {
	lines := splitLines(text)
	if len(lines) == 0 || lines[0] != tagHeader {
		return nil, fmt.Errorf("media manifest: missing %s header", tagHeader)
	}

	m := &MediaManifest{Version: -1, TargetDuration: -1, MediaSequence: -1}
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, tagVersion):
			v, err := strconv.Atoi(strings.TrimPrefix(line, tagVersion))
			if err != nil {
				return nil, fmt.Errorf("media manifest: invalid version %q", line)
			}
			m.Version = v
		case strings.HasPrefix(line, tagTargetDuration):
			v, err := strconv.Atoi(strings.TrimPrefix(line, tagTargetDuration))
			if err != nil {
				return nil, fmt.Errorf("media manifest: invalid target duration %q", line)
			}
			m.TargetDuration = v
		case strings.HasPrefix(line, tagPlaylistType):
			m.PlaylistType = strings.TrimPrefix(line, tagPlaylistType)
		case strings.HasPrefix(line, tagMediaSequence):
			v, err := strconv.Atoi(strings.TrimPrefix(line, tagMediaSequence))
			if err != nil {
				return nil, fmt.Errorf("media manifest: invalid media sequence %q", line)
			}
			m.MediaSequence = v
		case strings.HasPrefix(line, tagExtInf):
			dur, err := parseExtInfDuration(strings.TrimPrefix(line, tagExtInf))
			if err != nil {
				return nil, err
			}
			uri, next := nextURILine(lines, i+1)
			if uri == "" {
				return nil, fmt.Errorf("media manifest: EXTINF without segment URI")
			}
			i = next
			m.Segments = append(m.Segments, Segment{Duration: dur, URI: uri})
		}
	}

	switch {
	case m.Version < 0:
		return nil, fmt.Errorf("media manifest: missing EXT-X-VERSION")
	case m.TargetDuration < 0:
		return nil, fmt.Errorf("media manifest: missing EXT-X-TARGETDURATION")
	case m.PlaylistType == "":
		return nil, fmt.Errorf("media manifest: missing EXT-X-PLAYLIST-TYPE")
	case m.MediaSequence < 0:
		return nil, fmt.Errorf("media manifest: missing EXT-X-MEDIA-SEQUENCE")
	}
	return m, nil
}

// parseStreamInf parses the attribute list of an EXT-X-STREAM-INF tag.
// BANDWIDTH and RESOLUTION are required; the rest are carried when present.
func parseStreamInf(attrs string) (VariantStream, error) {
	var v VariantStream
	bandwidthSeen := false
	resolutionSeen := false

	for _, attr := range splitAttributes(attrs) {
		key, value, ok := strings.Cut(attr, "=")
		if !ok {
			return v, fmt.Errorf("master manifest: malformed stream-inf attribute %q", attr)
		}
		value = strings.Trim(value, `"`)
		switch key {
		case "BANDWIDTH":
			n, err := strconv.Atoi(value)
			if err != nil {
				return v, fmt.Errorf("master manifest: invalid BANDWIDTH %q", value)
			}
			v.Bandwidth = n
			bandwidthSeen = true
		case "AVERAGE-BANDWIDTH":
			n, err := strconv.Atoi(value)
			if err != nil {
				return v, fmt.Errorf("master manifest: invalid AVERAGE-BANDWIDTH %q", value)
			}
			v.AverageBandwidth = n
		case "RESOLUTION":
			w, h, ok := strings.Cut(value, "x")
			if !ok {
				return v, fmt.Errorf("master manifest: invalid RESOLUTION %q", value)
			}
			width, errW := strconv.Atoi(w)
			height, errH := strconv.Atoi(h)
			if errW != nil || errH != nil {
				return v, fmt.Errorf("master manifest: invalid RESOLUTION %q", value)
			}
			v.Width = width
			v.Height = height
			resolutionSeen = true
		case "FRAME-RATE":
			v.FrameRate = value
		case "CODECS":
			v.Codecs = value
		}
	}

	if !bandwidthSeen {
		return v, fmt.Errorf("master manifest: stream-inf missing BANDWIDTH")
	}
	if !resolutionSeen {
		return v, fmt.Errorf("master manifest: stream-inf missing RESOLUTION")
	}
	return v, nil
}

// parseExtInfDuration parses the float before the comma of an EXTINF tag.
func parseExtInfDuration(rest string) (float64, error) {
	value, _, _ := strings.Cut(rest, ",")
	dur, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("media manifest: invalid EXTINF duration %q", value)
	}
	return dur, nil
}

// splitAttributes splits an attribute list on commas that are outside
// quotes, so CODECS="avc1.64001f,mp4a.40.2" stays one attribute.
func splitAttributes(s string) []string {
	var out []string
	var b strings.Builder
	inQuotes := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			b.WriteRune(r)
		case r == ',' && !inQuotes:
			out = append(out, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

// nextURILine returns the first non-empty, non-tag line at or after start,
// and its index. Empty string means none was found.
func nextURILine(lines []string, start int) (string, int) {
	for i := start; i < len(lines); i++ {
		if lines[i] != "" && !strings.HasPrefix(lines[i], "#") {
			return lines[i], i
		}
	}
	return "", len(lines)
}

func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
