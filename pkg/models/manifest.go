package models

// Manifest is the static descriptor for a node type. It maps a node's
// declared operation onto a dispatch target.
type Manifest struct {
	Name   string          `json:"name"`
	Action ManifestAction  `json:"action"`
	Fields []ManifestField `json:"fields,omitempty"`
}

// ManifestAction is the dispatch target template. URL may contain an
// {{operation}} marker and {param} placeholders filled from resolved inputs.
type ManifestAction struct {
	URL    string `json:"url"`
	Method string `json:"method"`
}

// ManifestField describes one configurable field of a node type.
type ManifestField struct {
	Key     string        `json:"key"`
	Default any           `json:"default,omitempty"`
	Options []FieldOption `json:"options,omitempty"`
}

// FieldOption is one selectable option of a manifest field. For the
// "operation" field, a matching option overrides the action method.
type FieldOption struct {
	ID     string `json:"id"`
	Method string `json:"method,omitempty"`
}

// OperationOption looks up the option with the given id in the manifest's
// "operation" field definition.
func (m *Manifest) OperationOption(operation string) (FieldOption, bool) {
	for _, field := range m.Fields {
		if field.Key != "operation" {
			continue
		}

		for _, option := range field.Options {
			if option.ID == operation {
				return option, true
			}
		}
	}

	return FieldOption{}, false
}

// FieldDefault returns the declared default for a manifest field key.
func (m *Manifest) FieldDefault(key string) (any, bool) {
	for _, field := range m.Fields {
		if field.Key == key {
			return field.Default, field.Default != nil
		}
	}

	return nil, false
}
