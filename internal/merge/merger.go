// Package merge stitches the HLS manifests of independently recorded live
// slices into one continuous, seekable VOD manifest set.
package merge

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/vodstitch/backend/internal/hls"
	"github.com/vodstitch/backend/internal/models"
	"github.com/vodstitch/backend/pkg/metrics"
	"github.com/vodstitch/backend/pkg/storage"
)

// ErrNoSlices is returned when a merge is requested without any recording
// slices; merging nothing would emit a master manifest with no version and
// no variants.
var ErrNoSlices = errors.New("at least one recording slice required")

// ManifestStore persists merged manifests and resolves keys to CDN URLs.
// Implemented by *storage.S3.
type ManifestStore interface {
	UploadManifest(ctx context.Context, key, body string) error
	ManifestURL(key string) string
}

// Request carries the inputs of one merge operation. Slices are in playback
// order; that order is the declared timeline and is never revalidated
// against slice timestamps.
type Request struct {
	Environment string
	PK          string
	Stamp       string
	Slices      []models.RecordingSlice
}

// Merger runs the fetch → parse → merge → store pipeline.
type Merger struct {
	fetcher Fetcher
	store   ManifestStore
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewMerger creates a Merger. Metrics may be nil to disable recording;
// logger defaults to a no-op.
func NewMerger(fetcher Fetcher, store ManifestStore, m *metrics.Metrics, logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{fetcher: fetcher, store: store, metrics: m, logger: logger}
}

// variantTrack accumulates one merged per-resolution playlist across slices.
type variantTrack struct {
	height         int
	stream         hls.VariantStream
	version        int
	targetDuration int
	playlistType   string
	lines          []string
	sliceRuns      int
}

// Merge combines the slices' manifests per resolution into one media
// playlist each, plus a master manifest referencing them, writes all of them
// to the store, and returns the CDN URL of the merged master.
//
// Resolutions are deduplicated by height on first appearance, scanning
// slices in input order and variants in listed order; the first slice
// contributing a resolution fixes that track's stream attributes and header
// fields. Between two consecutive slices' segment runs a discontinuity
// marker and the incoming slice's own media sequence are emitted; sequence
// numbers are passed through verbatim, never renumbered. Segment URIs are
// prefixed with the owning slice's harvested directory so identically named
// files from different slices stay distinct.
//
// Media playlists are written before the master, so a visible master always
// references playlists that already exist. Any fetch, parse, or store
// failure aborts the merge with no partial result returned.
func (m *Merger) Merge(ctx context.Context, req Request) (string, error) {
	if len(req.Slices) == 0 {
		return "", ErrNoSlices
	}

	masterVersion := 0
	versionSeen := false
	tracks := make(map[int]*variantTrack)
	var heights []int

	for _, slice := range req.Slices {
		master, err := m.fetchMaster(ctx, slice.ManifestKey)
		if err != nil {
			return "", err
		}
		if !versionSeen {
			masterVersion = master.Version
			versionSeen = true
		}

		for _, variant := range master.Variants {
			mediaKey := path.Join(path.Dir(slice.ManifestKey), variant.URI)
			media, err := m.fetchMedia(ctx, mediaKey)
			if err != nil {
				return "", err
			}

			track, seen := tracks[variant.Height]
			if !seen {
				track = &variantTrack{
					height:         variant.Height,
					stream:         variant,
					version:        media.Version,
					targetDuration: media.TargetDuration,
					playlistType:   media.PlaylistType,
				}
				tracks[variant.Height] = track
				heights = append(heights, variant.Height)
			} else {
				track.lines = append(track.lines, "#EXT-X-DISCONTINUITY")
			}
			track.lines = append(track.lines, fmt.Sprintf("#EXT-X-MEDIA-SEQUENCE:%d", media.MediaSequence))
			for _, seg := range media.Segments {
				track.lines = append(track.lines, seg.ExtInfTag(), slice.HarvestedDirectory+"/"+seg.URI)
			}
			track.sliceRuns++
		}
	}

	// Media playlists first, master last: a player that can see the master
	// must be able to resolve every playlist it references.
	for _, h := range heights {
		key := storage.SubManifestKey(req.Environment, req.PK, req.Stamp, h)
		if err := m.store.UploadManifest(ctx, key, renderTrack(tracks[h])); err != nil {
			return "", err
		}
	}

	masterKey := storage.MasterManifestKey(req.PK, req.Stamp)
	masterBody := renderMaster(masterVersion, req.Environment, req.PK, req.Stamp, heights, tracks)
	if err := m.store.UploadManifest(ctx, masterKey, masterBody); err != nil {
		return "", err
	}

	url := m.store.ManifestURL(masterKey)
	m.logger.Info("slices merged",
		zap.String("pk", req.PK),
		zap.String("stamp", req.Stamp),
		zap.Int("slices", len(req.Slices)),
		zap.Int("resolutions", len(heights)),
		zap.String("manifest_url", url),
	)
	return url, nil
}

func (m *Merger) fetchMaster(ctx context.Context, key string) (*hls.MasterManifest, error) {
	text, err := m.fetcher.Fetch(ctx, m.store.ManifestURL(key))
	if err != nil {
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.IncManifestFetches()
	}
	return hls.ParseMaster(text)
}

func (m *Merger) fetchMedia(ctx context.Context, key string) (*hls.MediaManifest, error) {
	text, err := m.fetcher.Fetch(ctx, m.store.ManifestURL(key))
	if err != nil {
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.IncManifestFetches()
	}
	return hls.ParseMedia(text)
}

// renderTrack serializes one merged per-resolution playlist. Unlike the
// live originals, the output is a finished VOD playlist and ends with
// EXT-X-ENDLIST.
func renderTrack(t *variantTrack) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString(fmt.Sprintf("#EXT-X-VERSION:%d\n", t.version))
	b.WriteString(fmt.Sprintf("#EXT-X-TARGETDURATION:%d\n", t.targetDuration))
	b.WriteString(fmt.Sprintf("#EXT-X-PLAYLIST-TYPE:%s\n", t.playlistType))
	for _, line := range t.lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String()
}

// renderMaster serializes the merged master manifest. It is a multivariant
// pointer, not a media playlist, so it carries no ENDLIST.
func renderMaster(version int, environment, pk, stamp string, heights []int, tracks map[int]*variantTrack) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString(fmt.Sprintf("#EXT-X-VERSION:%d\n", version))
	b.WriteString("#EXT-X-INDEPENDENT-SEGMENTS\n")
	for _, h := range heights {
		b.WriteString(tracks[h].stream.StreamInfTag())
		b.WriteString("\n")
		b.WriteString(storage.SubManifestFilename(environment, pk, stamp, h))
		b.WriteString("\n")
	}
	return b.String()
}
