package cache

// Use-case profiles accepted by Recommend.
const (
	UseCaseGeneral         = "general"
	UseCaseHighQuality     = "high_quality"
	UseCaseFast            = "fast"
	UseCaseMemoryEfficient = "memory_efficient"
)

// Recommend maps a coarse use-case/hardware profile to a ranked artifact
// preference list. Pure function over the catalog; cache state is not
// consulted or mutated. A GPU with under 20 GB forces the
// memory-efficient tier regardless of the requested use case.
func (m *Manager) Recommend(useCase string, gpuMemGB float64) []string {
	if useCase == UseCaseMemoryEfficient || (gpuMemGB > 0 && gpuMemGB < 20) {
		return []string{
			"skyreels-v2-i2v-1.3b-540p",
			"skyreels-v2-df-1.3b-540p",
		}
	}
	switch useCase {
	case UseCaseHighQuality:
		return []string{
			"skyreels-v2-t2v-14b-720p",
			"skyreels-v2-i2v-14b-720p",
			"skyreels-v2-df-14b-720p",
		}
	case UseCaseFast:
		return []string{
			"skyreels-v2-t2v-14b-540p",
			"skyreels-v2-i2v-14b-540p",
			"skyreels-v2-df-14b-540p",
		}
	default:
		return []string{
			"skyreels-v2-t2v-14b-540p",
			"skyreels-v2-i2v-14b-540p",
		}
	}
}
