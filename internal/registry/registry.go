// Package registry holds the static catalog of known model artifacts.
// The catalog is built once at process start and never mutated.
package registry

import "vividd/pkg/types"

const gb = 1_000_000_000

// catalog lists the SkyReels-V2 weight bundles the service knows how to run.
var catalog = []types.Artifact{
	{ID: "skyreels-v2-t2v-14b-540p", Kind: types.KindTextToVideo, Resolution: "540P", Size: "14B",
		URL: "https://huggingface.co/Skywork/SkyReels-V2-T2V-14B-540P", ExpectedBytes: 28 * gb},
	{ID: "skyreels-v2-t2v-14b-720p", Kind: types.KindTextToVideo, Resolution: "720P", Size: "14B",
		URL: "https://huggingface.co/Skywork/SkyReels-V2-T2V-14B-720P", ExpectedBytes: 28 * gb},
	{ID: "skyreels-v2-i2v-1.3b-540p", Kind: types.KindImageToVideo, Resolution: "540P", Size: "1.3B",
		URL: "https://huggingface.co/Skywork/SkyReels-V2-I2V-1.3B-540P", ExpectedBytes: 26 * gb / 10},
	{ID: "skyreels-v2-i2v-14b-540p", Kind: types.KindImageToVideo, Resolution: "540P", Size: "14B",
		URL: "https://huggingface.co/Skywork/SkyReels-V2-I2V-14B-540P", ExpectedBytes: 28 * gb},
	{ID: "skyreels-v2-i2v-14b-720p", Kind: types.KindImageToVideo, Resolution: "720P", Size: "14B",
		URL: "https://huggingface.co/Skywork/SkyReels-V2-I2V-14B-720P", ExpectedBytes: 28 * gb},
	{ID: "skyreels-v2-df-1.3b-540p", Kind: types.KindForcing, Resolution: "540P", Size: "1.3B",
		URL: "https://huggingface.co/Skywork/SkyReels-V2-DF-1.3B-540P", ExpectedBytes: 26 * gb / 10},
	{ID: "skyreels-v2-df-14b-540p", Kind: types.KindForcing, Resolution: "540P", Size: "14B",
		URL: "https://huggingface.co/Skywork/SkyReels-V2-DF-14B-540P", ExpectedBytes: 28 * gb},
	{ID: "skyreels-v2-df-14b-720p", Kind: types.KindForcing, Resolution: "720P", Size: "14B",
		URL: "https://huggingface.co/Skywork/SkyReels-V2-DF-14B-720P", ExpectedBytes: 28 * gb},
}

// mandatoryFiles must all exist under an artifact's local path for the
// cache to consider it usable.
var mandatoryFiles = []string{
	"config.json",
	"model_index.json",
	"tokenizer_config.json",
}

// Registry is an immutable view over the artifact catalog.
type Registry struct {
	byID  map[string]types.Artifact
	order []string
}

// New builds a Registry from the compiled-in catalog.
func New() *Registry {
	return fromArtifacts(catalog)
}

// NewWith builds a Registry from an explicit artifact list. Used by tests
// to keep expected sizes small.
func NewWith(arts []types.Artifact) *Registry {
	return fromArtifacts(arts)
}

func fromArtifacts(arts []types.Artifact) *Registry {
	r := &Registry{byID: make(map[string]types.Artifact, len(arts))}
	for _, a := range arts {
		if _, dup := r.byID[a.ID]; dup {
			continue
		}
		r.byID[a.ID] = a
		r.order = append(r.order, a.ID)
	}
	return r
}

// Get returns the artifact for id.
func (r *Registry) Get(id string) (types.Artifact, bool) {
	a, ok := r.byID[id]
	return a, ok
}

// List returns the catalog in declaration order. The slice is a copy.
func (r *Registry) List() []types.Artifact {
	out := make([]types.Artifact, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len reports the number of known artifacts.
func (r *Registry) Len() int { return len(r.order) }

// ByKind returns artifacts matching kind, in declaration order.
func (r *Registry) ByKind(kind types.ArtifactKind) []types.Artifact {
	var out []types.Artifact
	for _, id := range r.order {
		if a := r.byID[id]; a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// MandatoryFiles returns the file set that must exist for an artifact to
// be considered complete.
func (r *Registry) MandatoryFiles(id string) []string {
	out := make([]string, len(mandatoryFiles))
	copy(out, mandatoryFiles)
	return out
}
