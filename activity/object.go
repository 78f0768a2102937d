package activity

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/c360/fedwire/errors"
)

// Context is the JSON-LD namespace injected into every serialized object.
const Context = "https://www.w3.org/ns/activitystreams"

// PublicAddress is the well-known public addressing collection.
const PublicAddress = Context + "#Public"

// Object represents one typed, validated protocol object.
// All wire variants must implement this interface to provide their
// discriminant, identity, validation, and serialization capabilities.
//
// Variants are transient: they are constructed from an untyped payload,
// consumed once by the mapping engine (or produced once by the outbound
// builder), and never persisted themselves.
type Object interface {
	// ActivityType returns the "type" discriminant for this variant.
	ActivityType() string

	// ObjectID returns the globally unique external identifier.
	ObjectID() string

	// Validate checks the object data for correctness after construction.
	Validate() error

	// JSON serialization using standard Go interfaces. Variants must
	// implement json.Marshaler and json.Unmarshaler for deterministic
	// serialization.
	json.Marshaler
	json.Unmarshaler
}

// VariantFactory creates an empty wire object for a specific discriminant.
type VariantFactory func() Object

// Registration holds the factory and declared field contract for one
// wire variant. Fields listed in Required must be present in the source
// payload; fields with an entry in Defaults take the default when the
// payload omits them. Payload fields outside the variant's declaration
// are silently dropped during construction.
type Registration struct {
	Factory     VariantFactory `json:"-"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Required    []string       `json:"required"`
	Defaults    map[string]any `json:"defaults"`
}

// Registry manages wire variant factories for payload construction.
// It provides thread-safe registration and lookup keyed by the "type"
// discriminant, enabling Construct to recreate typed objects from
// arbitrary inbound payloads.
type Registry struct {
	variants map[string]*Registration
	mu       sync.RWMutex
}

// NewRegistry creates a new empty variant registry.
func NewRegistry() *Registry {
	return &Registry{
		variants: make(map[string]*Registration),
	}
}

// Register registers a wire variant with validation.
// Returns an error if validation fails or the discriminant is already taken.
func (r *Registry) Register(registration *Registration) error {
	if registration == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "registration validation")
	}
	if registration.Factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "factory function validation")
	}
	if registration.Type == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "discriminant validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.variants[registration.Type]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("variant %q is already registered", registration.Type),
			"Registry", "Register", "duplicate variant check")
	}

	r.variants[registration.Type] = registration
	return nil
}

// Construct validates an untyped payload into a typed wire object.
// The payload's "type" field selects the variant; every declared field
// without a default must be present or construction fails naming the
// missing field. Unrecognized payload fields are dropped.
func (r *Registry) Construct(raw map[string]any) (Object, error) {
	typeName, _ := raw["type"].(string)
	if typeName == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: type", errors.ErrMissingField),
			"Registry", "Construct", "discriminant validation")
	}

	r.mu.RLock()
	registration, exists := r.variants[typeName]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnknownVariant, typeName),
			"Registry", "Construct", "variant lookup")
	}

	for _, name := range registration.Required {
		if _, ok := raw[name]; !ok {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %s", errors.ErrMissingField, name),
				"Registry", "Construct", "required field validation")
		}
	}

	merged := make(map[string]any, len(registration.Defaults)+len(raw))
	for key, value := range registration.Defaults {
		merged[key] = value
	}
	for key, value := range raw {
		merged[key] = value
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Registry", "Construct", "payload encoding")
	}

	obj := registration.Factory()
	if err := obj.UnmarshalJSON(data); err != nil {
		return nil, errors.WrapInvalid(err, "Registry", "Construct", "payload decoding")
	}

	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return obj, nil
}

// GetRegistration returns the registration for a discriminant.
func (r *Registry) GetRegistration(typeName string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	registration, exists := r.variants[typeName]
	if !exists {
		return nil, false
	}

	// Copy without the factory so callers cannot mutate registry state.
	return &Registration{
		Type:        registration.Type,
		Description: registration.Description,
		Required:    append([]string(nil), registration.Required...),
		Defaults:    registration.Defaults,
	}, true
}

// ListVariants returns the registered discriminants.
func (r *Registry) ListVariants() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.variants))
	for name := range r.variants {
		names = append(names, name)
	}
	return names
}

// defaultRegistry holds the protocol variants registered at startup.
var defaultRegistry = NewRegistry()

// Register registers a wire variant with the default registry.
func Register(registration *Registration) error {
	return defaultRegistry.Register(registration)
}

// MustRegister registers a wire variant and panics on failure.
// Intended for use from init functions.
func MustRegister(registration *Registration) {
	if err := Register(registration); err != nil {
		panic("activity: " + err.Error())
	}
}

// Construct validates an untyped payload against the default registry.
func Construct(raw map[string]any) (Object, error) {
	return defaultRegistry.Construct(raw)
}

// Serialize converts a typed wire object back to an untyped payload,
// re-emitting all declared fields and injecting the protocol namespace
// marker. It has no side effects on the object.
func Serialize(obj Object) (map[string]any, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, errors.WrapInvalid(err, "activity", "Serialize", "object encoding")
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapInvalid(err, "activity", "Serialize", "object decoding")
	}

	raw["@context"] = Context
	return raw, nil
}
