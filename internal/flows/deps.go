package flows

// Deps bundles what each token flow needs from the engine. The engine fills
// it once in Build; flows never reach back into the engine.
type Deps struct {
	Refresh  RefreshDeps
	Validate ValidateDeps
	Logout   LogoutDeps
}
