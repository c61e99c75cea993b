// Package observability provides OpenTelemetry metrics exported for Prometheus.
package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrStep      = "step"
	attrSuccess   = "success"
	attrKind      = "kind"
	attrAdapter   = "adapter"
	attrState     = "state"
	attrImmediate = "immediate"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

// unmatchedRoute labels requests that matched no route, so unknown paths
// share one series.
const unmatchedRoute = "unmatched"

func routeAttr(route string) attribute.KeyValue {
	if route == "" {
		route = unmatchedRoute
	}
	return attribute.String(attrPath, route)
}

func statusAttr(code int) attribute.KeyValue {
	// 200-299 -> 2xx, 400-499 -> 4xx, 500-599 -> 5xx
	group := fmt.Sprintf("%dxx", code/100)
	return attribute.String(attrStatus, group)
}

func stepAttr(step string) attribute.KeyValue {
	return attribute.String(attrStep, step)
}

func successAttr(success bool) attribute.KeyValue {
	return attribute.Bool(attrSuccess, success)
}

func kindAttr(kind string) attribute.KeyValue {
	if kind == "" {
		kind = "unknown"
	}
	return attribute.String(attrKind, kind)
}

func adapterAttr(adapter string) attribute.KeyValue {
	return attribute.String(attrAdapter, adapter)
}

func stateAttr(state string) attribute.KeyValue {
	return attribute.String(attrState, state)
}

func immediateAttr(immediate bool) attribute.KeyValue {
	return attribute.Bool(attrImmediate, immediate)
}
