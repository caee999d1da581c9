package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus   `json:"status"`
	Time    Timestamp      `json:"time"`
	Details map[string]any `json:"details,omitempty"`
}

// GatewayStatus reports the circuit state and last outcomes of one gateway.
type GatewayStatus struct {
	Gateway             string       `json:"gateway"`
	Status              HealthStatus `json:"status"`
	CircuitState        string       `json:"circuitState"`
	Requests            uint32       `json:"requests"`
	ConsecutiveFailures uint32       `json:"consecutiveFailures"`
	LastSuccessAt       *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *Timestamp   `json:"lastFailureAt,omitempty"`
	Message             string       `json:"message,omitempty"`
}

// GatewaysStatus is the body of GET /v1/ops/gateways.
type GatewaysStatus struct {
	Status   HealthStatus    `json:"status"`
	Time     Timestamp       `json:"time"`
	Gateways []GatewayStatus `json:"gateways"`
}
