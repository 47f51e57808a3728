// Package workflow implements the Temporal workflows of go-proctor.
//
// Workflows coordinate long-running batch operations whose progress must
// survive worker restarts. They hold no I/O of their own: every store call
// runs in an activity, and workflow code uses only deterministic
// workflow-safe APIs.
//
// Each workflow is gated with workflow.GetVersion so its control flow can
// evolve without breaking replay of in-flight executions.
package workflow
