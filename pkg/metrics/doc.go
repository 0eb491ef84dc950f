// Package metrics exposes Prometheus instrumentation and a small liveness
// and readiness health checker shared by the controller and agent binaries.
//
// Metrics are registered once at init and scraped via Handler(). Health
// state is a package-level registry (RegisterComponent/UpdateComponent)
// read by HealthHandler/ReadyHandler/LivenessHandler, mirroring the
// split between "process is alive" and "process can do useful work" that
// the agent's worker pool and the controller's leader election both
// depend on.
package metrics
