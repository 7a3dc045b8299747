package types

// Telemetry metric names for CloudWatch.
const (
	// Metric Names
	MetricSimulationAttempt = "SimulationAttempt"
	MetricSimulationResult  = "SimulationResult"
	MetricSimulationLatency = "SimulationLatency"

	// Dimension Keys
	DimResult   = "Result"
	DimEndpoint = "Endpoint"

	// Metric Namespace
	MetricNamespace = "GoldenBatch"
)

// Result dimension values.
const (
	ResultPass   = "pass"
	ResultFail   = "fail"
	ResultFailed = "failed"
)
