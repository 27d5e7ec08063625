package build

import (
	"testing"

	"github.com/openshift/recipe-to-image/pkg/api"
	r2ierr "github.com/openshift/recipe-to-image/pkg/errors"
)

func TestPipelineOrder(t *testing.T) {
	p := NewPipeline()
	for _, next := range phaseOrder[1:] {
		if err := p.Advance(next); err != nil {
			t.Fatalf("unexpected error advancing to %s: %v", next, err)
		}
	}
	if p.Phase() != api.PhaseBuilt {
		t.Errorf("expected %s, got %s", api.PhaseBuilt, p.Phase())
	}
	p.Fail()
	if p.Phase() != api.PhaseBuilt {
		t.Errorf("a built pipeline must not fail, got %s", p.Phase())
	}
}

func TestPipelineRejectsOutOfOrder(t *testing.T) {
	tests := map[string]struct {
		reached []api.Phase
		next    api.Phase
	}{
		"skip base":            {next: api.PhaseDependenciesInstalled},
		"publish early":        {reached: []api.Phase{api.PhaseBaseSelected}, next: api.PhaseBuilt},
		"repeat":               {reached: []api.Phase{api.PhaseBaseSelected}, next: api.PhaseBaseSelected},
		"backwards":            {reached: []api.Phase{api.PhaseBaseSelected, api.PhaseDependenciesInstalled}, next: api.PhaseBaseSelected},
		"artifact before deps": {reached: []api.Phase{api.PhaseBaseSelected}, next: api.PhaseArtifactPlaced},
	}
	for name, tc := range tests {
		p := NewPipeline()
		for _, phase := range tc.reached {
			if err := p.Advance(phase); err != nil {
				t.Fatalf("%s: unexpected error: %v", name, err)
			}
		}
		err := p.Advance(tc.next)
		if r2ierr.Code(err) != r2ierr.StageOrderError {
			t.Errorf("%s: expected a stage order error, got %v", name, err)
		}
	}
}

func TestPipelineFailIsTerminal(t *testing.T) {
	p := NewPipeline()
	if err := p.Advance(api.PhaseBaseSelected); err != nil {
		t.Fatal(err)
	}
	p.Fail()
	if p.Phase() != api.PhaseFailed {
		t.Fatalf("expected %s, got %s", api.PhaseFailed, p.Phase())
	}
	if err := p.Advance(api.PhaseDependenciesInstalled); err == nil {
		t.Error("a failed pipeline must not advance")
	}
	if p.Reached(api.PhaseBaseSelected) {
		t.Error("a failed pipeline reached nothing")
	}
}

func TestPipelineReached(t *testing.T) {
	p := NewPipeline()
	p.Advance(api.PhaseBaseSelected)
	p.Advance(api.PhaseDependenciesInstalled)
	if !p.Reached(api.PhaseBaseSelected) || !p.Reached(api.PhaseDependenciesInstalled) {
		t.Error("expected earlier phases to be reached")
	}
	if p.Reached(api.PhaseMetadataDeclared) {
		t.Error("metadata was not declared yet")
	}
}
