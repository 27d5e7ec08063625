package api

import (
	"strings"
	"time"
)

// RecordStageAndStepInfo records details about each build stage and step
func RecordStageAndStepInfo(stages Stages, stageName StageName, stepName StepName, startTime time.Time, endTime time.Time) Stages {
	step := StepInfo{
		StepName:  stepName,
		StartTime: startTime,
		Duration:  endTime.Sub(startTime),
	}

	// If the stage already exists update its duration and append the new step.
	for i := range stages {
		if stages[i].StageName == stageName {
			stages[i].Duration = endTime.Sub(stages[i].StartTime)
			stages[i].Steps = append(stages[i].Steps, step)
			return stages
		}
	}

	return append(stages, StageInfo{
		StageName: stageName,
		StartTime: startTime,
		Duration:  endTime.Sub(startTime),
		Steps:     []StepInfo{step},
	})
}

// RenderInstallCommand substitutes placeholder with manifest in every
// argument of command.
func RenderInstallCommand(command []string, placeholder, manifest string) []string {
	out := make([]string, 0, len(command))
	for _, arg := range command {
		out = append(out, strings.ReplaceAll(arg, placeholder, manifest))
	}
	return out
}
