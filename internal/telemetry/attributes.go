// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by dialwatch spans.
const (
	DialSinkIDKey   = "dial.sink_id"
	DialAppNameKey  = "dial.app_name"
	DialAppStateKey = "dial.app_state"

	ScanIDKey         = "scan.id"
	ScanQueriesKey    = "scan.queries"
	ScanActivitiesKey = "scan.activities"

	SSDPSearchTargetKey = "ssdp.search_target"
	SSDPResponsesKey    = "ssdp.responses"

	HTTPMethodKey     = "http.request.method"
	HTTPRouteKey      = "http.route"
	HTTPStatusCodeKey = "http.response.status_code"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// DialAttributes identifies the (sink, app) pair a query targets. Empty
// values are omitted.
func DialAttributes(sinkID, appName string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if sinkID != "" {
		attrs = append(attrs, attribute.String(DialSinkIDKey, sinkID))
	}
	if appName != "" {
		attrs = append(attrs, attribute.String(DialAppNameKey, appName))
	}
	return attrs
}

// SSDPAttributes describes one search round.
func SSDPAttributes(searchTarget string, responses int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SSDPSearchTargetKey, searchTarget),
		attribute.Int(SSDPResponsesKey, responses),
	}
}

// ErrorAttributes marks a span as failed with a classified error type.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}

// HTTPAttributes describes a served API request. A zero status is omitted
// so the helper can be used before the handler runs.
func HTTPAttributes(method, route string, status int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
	}
	if status > 0 {
		attrs = append(attrs, attribute.Int(HTTPStatusCodeKey, status))
	}
	return attrs
}
