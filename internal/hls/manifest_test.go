package hls

import "testing"

func TestVariantStream_StreamInfTag(t *testing.T) {
	v := VariantStream{
		Bandwidth:        2800000,
		AverageBandwidth: 2400000,
		Width:            1280,
		Height:           720,
		FrameRate:        "30.000",
		Codecs:           "avc1.640029,mp4a.40.2",
	}
	want := `#EXT-X-STREAM-INF:BANDWIDTH=2800000,AVERAGE-BANDWIDTH=2400000,RESOLUTION=1280x720,FRAME-RATE=30.000,CODECS="avc1.640029,mp4a.40.2"`
	if got := v.StreamInfTag(); got != want {
		t.Errorf("StreamInfTag:\n got %s\nwant %s", got, want)
	}
}

func TestVariantStream_StreamInfTag_optional_attrs_omitted(t *testing.T) {
	v := VariantStream{Bandwidth: 1400000, Width: 960, Height: 540}
	want := "#EXT-X-STREAM-INF:BANDWIDTH=1400000,RESOLUTION=960x540"
	if got := v.StreamInfTag(); got != want {
		t.Errorf("StreamInfTag: got %s, want %s", got, want)
	}
}

func TestSegment_ExtInfTag(t *testing.T) {
	// Three decimal digits always, regardless of input precision.
	cases := []struct {
		duration float64
		want     string
	}{
		{4, "#EXTINF:4.000,"},
		{3.5, "#EXTINF:3.500,"},
		{2.0084, "#EXTINF:2.008,"},
		{1.9996, "#EXTINF:2.000,"},
	}
	for _, tc := range cases {
		if got := (Segment{Duration: tc.duration}).ExtInfTag(); got != tc.want {
			t.Errorf("ExtInfTag(%v): got %s, want %s", tc.duration, got, tc.want)
		}
	}
}
