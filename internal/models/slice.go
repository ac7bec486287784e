package models

// Recording slice lifecycle (set by the upstream harvester).
const (
	SliceStatusHarvesting = "harvesting"
	SliceStatusHarvested  = "harvested"
)

// RecordingSlice is one contiguous portion of a live recording, as reported
// by the harvester. Slices arrive in playback order; the merge pipeline
// never reorders them. Start/Stop and HarvestJobID are informational only.
type RecordingSlice struct {
	Start              string `json:"start"`
	Stop               string `json:"stop"`
	HarvestJobID       string `json:"harvest_job_id"`
	ManifestKey        string `json:"manifest_key"`
	HarvestedDirectory string `json:"harvested_directory"`
	Status             string `json:"status"`
}
