package asyncapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/wms-platform/task-engine/pkg/cloudevents"
)

// eventTypeKey marks a component schema as the payload of an event type.
const eventTypeKey = "x-event-type"

// EventValidator validates CloudEvent payloads against AsyncAPI component schemas.
type EventValidator struct {
	schemas map[string]*jsonschema.Schema
}

type document struct {
	AsyncAPI   string `yaml:"asyncapi"`
	Components struct {
		Schemas map[string]map[string]interface{} `yaml:"schemas"`
	} `yaml:"components"`
}

// NewEventValidatorFromBytes compiles every component schema that carries an
// x-event-type marker.
func NewEventValidatorFromBytes(specBytes []byte) (*EventValidator, error) {
	var doc document
	if err := yaml.Unmarshal(specBytes, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse AsyncAPI spec: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	schemas := make(map[string]*jsonschema.Schema)

	names := make([]string, 0, len(doc.Components.Schemas))
	for name := range doc.Components.Schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		raw := doc.Components.Schemas[name]
		eventType, ok := raw[eventTypeKey].(string)
		if !ok || eventType == "" {
			continue
		}
		delete(raw, eventTypeKey)

		schemaDoc, err := toJSONValue(raw)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}

		uri := "asyncapi://schemas/" + name
		if err := compiler.AddResource(uri, schemaDoc); err != nil {
			return nil, fmt.Errorf("failed to add schema %s: %w", name, err)
		}

		compiled, err := compiler.Compile(uri)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
		}
		schemas[eventType] = compiled
	}

	return &EventValidator{schemas: schemas}, nil
}

// ValidateEvent checks the envelope attributes and validates the payload.
func (v *EventValidator) ValidateEvent(event *cloudevents.WMSCloudEvent) error {
	if event.SpecVersion != "1.0" {
		return fmt.Errorf("unsupported specversion %q", event.SpecVersion)
	}
	if event.ID == "" || event.Source == "" {
		return fmt.Errorf("event id and source are required")
	}
	return v.ValidateData(event.Type, event.Data)
}

// ValidateData validates a payload against the schema registered for eventType.
func (v *EventValidator) ValidateData(eventType string, data interface{}) error {
	if eventType == "" {
		return fmt.Errorf("event type is required")
	}

	schema, ok := v.schemas[eventType]
	if !ok {
		return fmt.Errorf("no schema found for event type: %s", eventType)
	}
	if data == nil {
		return fmt.Errorf("event data is required")
	}

	instance, err := toJSONValue(data)
	if err != nil {
		return err
	}

	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("event data validation failed for type %s: %w", eventType, err)
	}
	return nil
}

// GetSupportedEventTypes returns the sorted event types with registered schemas.
func (v *EventValidator) GetSupportedEventTypes() []string {
	types := make([]string, 0, len(v.schemas))
	for eventType := range v.schemas {
		types = append(types, eventType)
	}
	sort.Strings(types)
	return types
}

// toJSONValue re-encodes v into the value model the schema compiler expects.
func toJSONValue(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode: %w", err)
	}
	value, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode: %w", err)
	}
	return value, nil
}
