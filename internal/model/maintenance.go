package model

// MaintenanceStatus is the response of GET /maintenance/status.
type MaintenanceStatus struct {
	Maintenance bool   `json:"maintenance"`
	Message     string `json:"message,omitempty"`
}
