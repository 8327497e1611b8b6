// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"
	FieldRouteID       = "route_id"
	FieldSinkID        = "sink_id"
	FieldAppName       = "app_name"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// State fields
	FieldOldStatus = "old_status"
	FieldNewStatus = "new_status"
	FieldAppState  = "app_state"

	// Network fields
	FieldApplicationURL = "application_url"
	FieldLocation       = "location"
	FieldUSN            = "usn"
)
