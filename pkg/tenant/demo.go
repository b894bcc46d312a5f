package tenant

// The demo tenant is registered by the service's demo seeds and removed by
// the utils clear-demo command.
const (
	DemoBrandKey = "demo"
	DemoTenantID = "8f0c5a52-3a8e-4d3c-9b7e-2f1d6c0a9e11"
)
