// Package dispatcher turns a node, its manifest and its resolved inputs
// into a concrete handler invocation.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/coreza/coreza/pkg/handlers"
	"github.com/coreza/coreza/pkg/models"
)

var paramRegex = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// Dispatcher resolves dispatch targets against the handler registry.
type Dispatcher struct {
	logger   *slog.Logger
	registry *handlers.Registry
}

func NewDispatcher(logger *slog.Logger, registry *handlers.Registry) *Dispatcher {
	return &Dispatcher{
		logger:   logger.With("module", "dispatcher"),
		registry: registry,
	}
}

// Dispatch executes one node. All failure modes, a missing handler, a
// handler error return and a handler-reported error value, fold into a
// failed Result; Dispatch itself never returns an error to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, node models.Node, m *models.Manifest, inputs map[string]any) models.Result {
	switch node.Type {
	case models.NodeTypeIf:
		return ifResult(inputs)
	case models.NodeTypeScheduler:
		return models.SuccessResult(map[string]any{
			"scheduled_at": time.Now().UTC().Format(time.RFC3339),
		})
	}

	endpoint, method := d.target(node, m)

	endpoint, err := substituteParams(endpoint, inputs)
	if err != nil {
		return models.ErrorResult(err.Error())
	}

	if !strings.HasPrefix(endpoint, "/") {
		d.logger.Warn("Dispatch target is not a local path", "node_id", node.ID, "endpoint", endpoint)

		return models.SuccessResult(map[string]any{})
	}

	service, name, ok := splitTarget(endpoint)
	if !ok {
		return models.ErrorResult(fmt.Sprintf("no handler for %s", strings.ReplaceAll(strings.TrimPrefix(endpoint, "/"), "/", "_")))
	}

	handler, found := d.registry.Lookup(service, name)
	if !found {
		return models.ErrorResult(fmt.Sprintf("no handler for %s_%s", service, name))
	}

	d.logger.Debug("Dispatching node", "node_id", node.ID, "endpoint", endpoint, "method", method)

	output, err := handler(ctx, inputs)
	if err != nil {
		return models.ErrorResult(err.Error())
	}

	if message, failed := output["error"].(string); failed && message != "" {
		return models.ErrorResult(message)
	}

	return models.SuccessResult(output)
}

// target builds the endpoint and method from the manifest action, applying
// the node's operation override when its option exists in the manifest.
func (d *Dispatcher) target(node models.Node, m *models.Manifest) (string, string) {
	endpoint := m.Action.URL

	method := strings.ToUpper(m.Action.Method)
	if method == "" {
		method = "GET"
	}

	operation, _ := node.Values["operation"].(string)
	if operation == "" {
		return endpoint, method
	}

	option, ok := m.OperationOption(operation)
	if !ok {
		return endpoint, method
	}

	if option.Method != "" {
		method = strings.ToUpper(option.Method)
	}

	endpoint = strings.ReplaceAll(endpoint, "{{operation}}", operation)

	return endpoint, method
}

// substituteParams fills {param} placeholders from inputs. This templating
// applies only to the dispatch target, never to field values.
func substituteParams(endpoint string, inputs map[string]any) (string, error) {
	var missing string

	result := paramRegex.ReplaceAllStringFunc(endpoint, func(match string) string {
		key := paramRegex.FindStringSubmatch(match)[1]

		value, ok := inputs[key]
		if !ok {
			if missing == "" {
				missing = key
			}

			return match
		}

		return fmt.Sprintf("%v", value)
	})

	if missing != "" {
		return "", fmt.Errorf("missing dispatch parameter: %s", missing)
	}

	return result, nil
}

// splitTarget parses /{service}/{rest...} into a registry key, joining the
// rest segments with underscores.
func splitTarget(endpoint string) (string, string, bool) {
	parts := strings.Split(strings.Trim(endpoint, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}

	return parts[0], strings.Join(parts[1:], "_"), true
}

// ifResult selects one of two inputs based on the condition's truthiness.
func ifResult(inputs map[string]any) models.Result {
	var branch any
	if truthy(inputs["condition"]) {
		branch = inputs["onTrue"]
	} else {
		branch = inputs["onFalse"]
	}

	return models.SuccessResult(map[string]any{"result": branch})
}

func truthy(v any) bool {
	switch value := v.(type) {
	case nil:
		return false
	case bool:
		return value
	case string:
		return value != "" && value != "false" && value != "0"
	case float64:
		return value != 0
	case int:
		return value != 0
	case []any:
		return len(value) > 0
	case map[string]any:
		return len(value) > 0
	default:
		return true
	}
}
