// Package telemetry provides the tracer and metrics injected into proof
// sessions.
//
// Nothing is exported over the network: spans go to a JSON file and
// metrics are written once, as a Prometheus textfile, when the process
// shuts down. Without a configured sink the tracer and meter are no-ops.
package telemetry
