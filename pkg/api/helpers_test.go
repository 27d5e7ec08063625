package api

import (
	"reflect"
	"testing"
	"time"
)

func TestRecordStageAndStepInfo(t *testing.T) {
	start := time.Now()
	var stages Stages

	stages = RecordStageAndStepInfo(stages, StageBase, StepPullBaseImage, start, start.Add(time.Second))
	stages = RecordStageAndStepInfo(stages, StageBase, StepPinBaseImage, start.Add(time.Second), start.Add(3*time.Second))
	stages = RecordStageAndStepInfo(stages, StageDependencies, StepBuildDependenciesLayer, start.Add(3*time.Second), start.Add(4*time.Second))

	if len(stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(stages))
	}
	if len(stages[0].Steps) != 2 {
		t.Errorf("expected 2 steps in %s, got %d", stages[0].StageName, len(stages[0].Steps))
	}
	if stages[0].Duration != 3*time.Second {
		t.Errorf("expected stage duration to span both steps, got %v", stages[0].Duration)
	}
	if stages[1].StageName != StageDependencies {
		t.Errorf("unexpected stage order: %#v", stages)
	}
}

func TestRenderInstallCommand(t *testing.T) {
	got := RenderInstallCommand([]string{"pip", "install", "-r", "{manifest}"}, "{manifest}", "requirements.lock")
	want := []string{"pip", "install", "-r", "requirements.lock"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestPullPolicySet(t *testing.T) {
	var p PullPolicy
	if p.String() != string(DefaultPullPolicy) {
		t.Errorf("expected empty policy to print as default, got %s", p.String())
	}
	for _, v := range []string{"always", "never", "if-not-present"} {
		if err := p.Set(v); err != nil {
			t.Errorf("unexpected error for %q: %v", v, err)
		}
		if string(p) != v {
			t.Errorf("expected %q, got %q", v, p)
		}
	}
	if err := p.Set("sometimes"); err == nil {
		t.Error("expected an error for an unknown policy")
	}
}

func TestEnvironmentListSet(t *testing.T) {
	var env EnvironmentList
	if err := env.Set("PORT=8080"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := env.Set(" MODE = prod "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := env.Set("novalue"); err == nil {
		t.Error("expected an error for a value without '='")
	}
	if err := env.Set("A=1,B=2"); err == nil {
		t.Error("expected an error for multiple variables in one value")
	}
	if got, want := env.AsBinds(), []string{"PORT=8080", "MODE=prod"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if env.String() != "PORT=8080,MODE=prod" {
		t.Errorf("unexpected string form %q", env.String())
	}
}
