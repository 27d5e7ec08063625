package build

import (
	"github.com/openshift/recipe-to-image/pkg/api"
	r2ierr "github.com/openshift/recipe-to-image/pkg/errors"
)

// phaseOrder lists the pipeline states in the only order they may be
// reached.
var phaseOrder = []api.Phase{
	api.PhaseStart,
	api.PhaseBaseSelected,
	api.PhaseDependenciesInstalled,
	api.PhaseArtifactPlaced,
	api.PhaseMetadataDeclared,
	api.PhaseBuilt,
}

// Pipeline tracks the state of a single build. Transitions are one-way:
// every state is reached from its predecessor only, and Failed is terminal.
type Pipeline struct {
	phase api.Phase
}

// NewPipeline returns a pipeline in the Start state.
func NewPipeline() *Pipeline {
	return &Pipeline{phase: api.PhaseStart}
}

// Phase returns the current state.
func (p *Pipeline) Phase() api.Phase {
	return p.phase
}

// Advance moves the pipeline to next, which must directly follow the
// current state.
func (p *Pipeline) Advance(next api.Phase) error {
	current := indexOf(p.phase)
	if current < 0 || current+1 >= len(phaseOrder) || phaseOrder[current+1] != next {
		return r2ierr.NewStageOrderError(string(p.phase), string(next))
	}
	log.V(2).Infof("Pipeline %s -> %s", p.phase, next)
	p.phase = next
	return nil
}

// Fail moves the pipeline to Failed. A built pipeline cannot fail anymore.
func (p *Pipeline) Fail() {
	if p.phase == api.PhaseBuilt {
		return
	}
	p.phase = api.PhaseFailed
}

// Reached reports whether the pipeline got to phase or past it.
func (p *Pipeline) Reached(phase api.Phase) bool {
	current, target := indexOf(p.phase), indexOf(phase)
	return current >= 0 && target >= 0 && current >= target
}

func indexOf(phase api.Phase) int {
	for i, p := range phaseOrder {
		if p == phase {
			return i
		}
	}
	return -1
}
