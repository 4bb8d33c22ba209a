package schema

// DashboardInput creates a dashboard.
type DashboardInput struct {
	Name        string `json:"name" required:"true" minLength:"1"`
	Department  string `json:"department,omitempty"`
	Description string `json:"description,omitempty"`
}
