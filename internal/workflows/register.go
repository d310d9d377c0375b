package workflows

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker) {
	w.RegisterWorkflow(ProjectIngestWorkflow)
	w.RegisterWorkflow(DocumentIngestWorkflow)
	w.RegisterWorkflow(PlanBuildWorkflow)
	w.RegisterWorkflow(AHABuildWorkflow)
	w.RegisterWorkflow(BackfillWorkflow)
}
