package tasks

import "vividd/pkg/types"

const (
	framesPerSecond = 24
	// Credits per generated second by task kind.
	costPerSecondT2V = 10
	costPerSecondI2V = 15
)

// CostCredits computes the credit cost of a generation request. Cost is
// proportional to requested duration with a one second minimum so every
// admitted task pays something.
func CostCredits(kind types.ArtifactKind, params types.TaskParams) int64 {
	seconds := params.NumFrames / framesPerSecond
	if seconds < 1 {
		seconds = 1
	}
	per := costPerSecondT2V
	if kind == types.KindImageToVideo {
		per = costPerSecondI2V
	}
	return int64(seconds * per)
}
