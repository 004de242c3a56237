package http

import "github.com/fyrsmithlabs/insightkit/pkg/contracts"

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Telemetry string `json:"telemetry"`
}

// EventRequest is the request body for POST /api/v1/track/event.
type EventRequest struct {
	Name       string               `json:"name"`
	Properties contracts.Properties `json:"properties,omitempty"`
}

// MetricRequest is the request body for POST /api/v1/track/metric.
type MetricRequest struct {
	Name       string               `json:"name"`
	Value      *float64             `json:"value"`
	Properties contracts.Properties `json:"properties,omitempty"`
}

// TraceRequest is the request body for POST /api/v1/track/trace. Severity
// defaults to information.
type TraceRequest struct {
	Message    string               `json:"message"`
	Severity   string               `json:"severity,omitempty"`
	Properties contracts.Properties `json:"properties,omitempty"`
}

// ExceptionRequest is the request body for POST /api/v1/track/exception.
type ExceptionRequest struct {
	Message    string               `json:"message"`
	Properties contracts.Properties `json:"properties,omitempty"`
}

// PageViewRequest is the request body for POST /api/v1/track/pageview.
type PageViewRequest struct {
	Name       string               `json:"name"`
	URL        string               `json:"url,omitempty"`
	Properties contracts.Properties `json:"properties,omitempty"`
}

// AcceptedResponse is returned once a record has been handed to the
// collector. Delivery happens later.
type AcceptedResponse struct {
	OperationID string `json:"operation_id,omitempty"`
}
