package types

// GenerateRequest is the payload for text-to-video and image-to-video
// submission endpoints.
type GenerateRequest struct {
	// Submitting user id.
	UserID string `json:"user_id"`
	// Required prompt text.
	// example: A lighthouse in a storm, cinematic.
	Prompt string `json:"prompt"`
	// Number of frames at 24 fps; defaults to 97 when omitted.
	NumFrames int `json:"num_frames,omitempty"`
	// Aspect ratio, e.g. 16:9.
	AspectRatio string `json:"aspect_ratio,omitempty"`
	// Input image path, required for image-to-video.
	ImagePath string `json:"image_path,omitempty"`
	// Classifier-free guidance scale.
	GuidanceScale float64 `json:"guidance_scale,omitempty"`
}

// GenerateResponse acknowledges an admitted task.
type GenerateResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	// Credits deducted for this task.
	Cost int64 `json:"cost"`
}

// ArtifactsResponse wraps the catalog returned by GET /models.
type ArtifactsResponse struct {
	Artifacts []ArtifactStatus `json:"models"`
}

// ArtifactStatus pairs a catalog entry with its cache state.
type ArtifactStatus struct {
	Artifact
	Present         bool           `json:"present"`
	ProgressPercent int            `json:"progress_percent"`
	Download        DownloadStatus `json:"download_status"`
}

// CacheStats summarizes on-disk cache usage for GET /models/stats.
type CacheStats struct {
	CacheDir        string           `json:"cache_dir"`
	DownloadedCount int              `json:"downloaded_count"`
	TotalCount      int              `json:"total_count"`
	UsedBytes       int64            `json:"used_bytes"`
	AvailableBytes  int64            `json:"available_bytes"`
	Artifacts       []ArtifactStatus `json:"models"`
}

// BalanceResponse reports a user's credit standing.
type BalanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
	// True for top-tier accounts; Balance is a sentinel then.
	Unlimited    bool          `json:"unlimited"`
	Transactions []Transaction `json:"transactions,omitempty"`
}

// SignupRequest creates a credit account.
type SignupRequest struct {
	UserID string `json:"user_id"`
	// Unlimited marks a top-tier account exempt from deductions.
	Unlimited bool `json:"unlimited,omitempty"`
}

// CreditRequest adds funds to an account.
type CreditRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: insufficient credits
	Error string `json:"error"`
	// HTTP status code.
	// example: 402
	Code int `json:"code"`
}
