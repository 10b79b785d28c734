package organize

// OrchestratorFactory builds the runner used by commands.
// This allows for dependency injection in tests
type OrchestratorFactory func(opts ...Option) BatchRunner

// DefaultOrchestratorFactory creates a real orchestrator
var DefaultOrchestratorFactory OrchestratorFactory = func(opts ...Option) BatchRunner {
	return NewOrchestrator(opts...)
}

// CurrentOrchestratorFactory is the currently active factory
// This can be swapped in tests
var CurrentOrchestratorFactory = DefaultOrchestratorFactory

// SetOrchestratorFactory sets a custom factory for dependency injection
func SetOrchestratorFactory(factory OrchestratorFactory) {
	CurrentOrchestratorFactory = factory
}

// ResetOrchestratorFactory resets to the default factory
func ResetOrchestratorFactory() {
	CurrentOrchestratorFactory = DefaultOrchestratorFactory
}
