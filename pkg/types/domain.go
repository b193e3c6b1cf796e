package types

import "time"

// ArtifactKind classifies what a model artifact can generate.
type ArtifactKind string

const (
	KindTextToVideo  ArtifactKind = "t2v"
	KindImageToVideo ArtifactKind = "i2v"
	KindForcing      ArtifactKind = "df"
)

// Artifact describes a downloadable model-weight bundle. Entries are
// built once at process start from the static catalog and never mutated.
type Artifact struct {
	// Stable identifier for the artifact.
	// example: skyreels-v2-t2v-14b-540p
	ID string `json:"id"`
	// What the model generates: t2v, i2v or df (diffusion forcing).
	Kind ArtifactKind `json:"kind"`
	// Output resolution class, e.g. 540P or 720P.
	Resolution string `json:"resolution"`
	// Parameter-count class, e.g. 1.3B or 14B.
	Size string `json:"size"`
	// Upstream location the weights are fetched from.
	URL string `json:"url"`
	// Estimated on-disk footprint in bytes.
	ExpectedBytes int64 `json:"expected_bytes"`
}

// DownloadStatus is the lifecycle state of an artifact's local copy.
type DownloadStatus string

const (
	DownloadAbsent      DownloadStatus = "absent"
	DownloadInFlight    DownloadStatus = "downloading"
	DownloadPresent     DownloadStatus = "present"
	DownloadFailedState DownloadStatus = "failed"
)

// CacheEntry is the mutable record of an artifact's local presence.
type CacheEntry struct {
	ArtifactID string `json:"artifact_id"`
	// Absolute path of the local copy; empty unless present.
	LocalPath string `json:"local_path,omitempty"`
	Present   bool   `json:"present"`
	// Download progress, 0-100. Monotonically non-decreasing per attempt.
	ProgressPercent int            `json:"progress_percent"`
	Status          DownloadStatus `json:"status"`
}

// TaskStatus is the lifecycle state of a generation task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// IsTerminal reports whether no further transitions are possible.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// TaskParams carries the user-supplied generation parameters.
type TaskParams struct {
	// Prompt text for the generation.
	Prompt string `json:"prompt"`
	// Number of frames to generate at 24 fps.
	// example: 97
	NumFrames int `json:"num_frames"`
	// Aspect ratio, e.g. 16:9. Optional.
	AspectRatio string `json:"aspect_ratio,omitempty"`
	// Path of the input image for image-to-video tasks.
	ImagePath string `json:"image_path,omitempty"`
	// Classifier-free guidance scale. Optional.
	GuidanceScale float64 `json:"guidance_scale,omitempty"`
}

// Task is one user-submitted generation request and its lifecycle record.
type Task struct {
	ID              string       `json:"task_id"`
	UserID          string       `json:"user_id"`
	Kind            ArtifactKind `json:"kind"`
	Params          TaskParams   `json:"params"`
	Status          TaskStatus   `json:"status"`
	ProgressPercent int          `json:"progress_percent"`
	CostCredits     int64        `json:"cost_credits"`
	OutputLocation  string       `json:"output_location,omitempty"`
	ErrorMessage    string       `json:"error_message,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty"`
}

// Transaction is one append-only credit ledger record.
type Transaction struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	// Signed credit delta; negative for deductions.
	Delta        int64     `json:"delta"`
	BalanceAfter int64     `json:"balance_after"`
	Reason       string    `json:"reason"`
	ReferenceID  string    `json:"reference_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
