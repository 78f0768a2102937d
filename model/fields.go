package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/c360/fedwire/activity"
	"github.com/c360/fedwire/errors"
)

// FieldKind categorizes a convertible field by when its value may be
// applied during mapping.
type FieldKind int

const (
	// KindScalar fields (scalars and single references) are assigned
	// immediately during conversion.
	KindScalar FieldKind = iota
	// KindResource fields (attached resources such as images) are applied
	// after scalar fields but before multi-valued associations.
	KindResource
	// KindMany fields (multi-valued associations) are applied only after
	// the owning entity has a durable identity.
	KindMany
)

// String returns the string representation of FieldKind.
func (k FieldKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindResource:
		return "resource"
	case KindMany:
		return "many"
	default:
		return "unknown"
	}
}

// FromWireFunc deserializes one wire field into an entity field value.
// The second return value reports presence: false means the field is
// absent from the wire object (distinct from null or empty) and must be
// skipped. Converters for reference fields use the resolver to turn
// external identifiers into entities.
type FromWireFunc func(ctx context.Context, r Resolver, obj activity.Object) (any, bool, error)

// ToWireFunc serializes one entity field into a wire field value.
// The second return value false omits the field, letting the variant
// default stand.
type ToWireFunc func(e Entity) (any, bool)

// AssignFunc writes a deserialized value onto the entity.
type AssignFunc func(e Entity, value any) error

// FieldDescriptor is the declarative binding between one wire field and
// one entity field, carrying both converter directions and the category
// that decides when the value may be applied.
type FieldDescriptor struct {
	Name      string
	WireField string
	Kind      FieldKind
	FromWire  FromWireFunc
	ToWire    ToWireFunc
	Assign    AssignFunc
}

// ReverseField declares a relation where the related objects carry the
// foreign key back to the entity being converted. Items are resolved
// asynchronously, only after the origin entity is durable.
type ReverseField struct {
	ModelField string
	WireField  string
	Target     Type

	// Items extracts the raw reverse items from an inbound wire object.
	Items func(obj activity.Object) []any

	// Collect serializes the loaded reverse collection for outbound
	// conversion. A false return omits the field.
	Collect func(e Entity) (any, bool)
}

// RelationSetter writes the origin entity onto a relation field of the
// target entity during deferred resolution.
type RelationSetter func(e Entity, related Entity) error

// Binding is the per-entity-type conversion contract: exactly one wire
// variant, the ordered convertible fields, the reverse-collection
// fields, and the hooks consumed by the outbound activity builder.
type Binding struct {
	Type        Type
	Serializer  string
	Description string

	// New constructs an uninitialized entity of this type.
	New func() Entity

	// Fields holds the convertible field descriptors. Scalar fields are
	// resolved before attached resources, which are resolved before
	// multi-valued associations; the engine stashes later categories and
	// applies them in order.
	Fields []FieldDescriptor

	// Reverse holds the reverse-collection fields, processed last and
	// only post-persistence.
	Reverse []ReverseField

	// Relations names the relation fields a deferred resolution request
	// may set on entities of this type.
	Relations map[string]RelationSetter

	// Recipients supplies the addressing inputs for outbound privacy
	// computation. A false return means the entity is not addressed.
	Recipients func(e Entity) (followers string, mentions []string, privacy PrivacyLevel, ok bool)

	// Pure rendering hooks for peers lacking native support. PureType
	// empty means the type has no pure form.
	PureType        string
	PureContent     func(e Entity) (string, bool)
	PureAttachments func(e Entity) []activity.Image
}

// BindingRegistry manages entity type bindings. It is populated once at
// startup and read-only afterwards; the serializer binding is 1:1, so a
// wire variant claimed by one entity type cannot be claimed by another.
type BindingRegistry struct {
	byType       map[Type]*Binding
	bySerializer map[string]*Binding
	mu           sync.RWMutex
}

// NewBindingRegistry creates a new empty binding registry.
func NewBindingRegistry() *BindingRegistry {
	return &BindingRegistry{
		byType:       make(map[Type]*Binding),
		bySerializer: make(map[string]*Binding),
	}
}

// Register registers an entity type binding with validation.
func (r *BindingRegistry) Register(b *Binding) error {
	if b == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "BindingRegistry", "Register", "binding validation")
	}
	if !b.Type.Valid() {
		return errors.WrapInvalid(
			fmt.Errorf("%w: entity type %q", errors.ErrInvalidConfig, b.Type),
			"BindingRegistry", "Register", "type validation")
	}
	if b.Serializer == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "BindingRegistry", "Register", "serializer validation")
	}
	if b.New == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "BindingRegistry", "Register", "factory validation")
	}
	for _, field := range b.Fields {
		if field.Name == "" || field.WireField == "" || field.FromWire == nil || field.Assign == nil {
			return errors.WrapInvalid(
				fmt.Errorf("%w: incomplete descriptor %q on %q", errors.ErrInvalidConfig, field.Name, b.Type),
				"BindingRegistry", "Register", "field descriptor validation")
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byType[b.Type]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("entity type %q is already bound", b.Type),
			"BindingRegistry", "Register", "duplicate type check")
	}
	if _, exists := r.bySerializer[b.Serializer]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("serializer %q is already bound", b.Serializer),
			"BindingRegistry", "Register", "duplicate serializer check")
	}

	r.byType[b.Type] = b
	r.bySerializer[b.Serializer] = b
	return nil
}

// ForType returns the binding for an entity type.
func (r *BindingRegistry) ForType(t Type) (*Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, exists := r.byType[t]
	if !exists {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: no binding for entity type %q", errors.ErrInvalidConfig, t),
			"BindingRegistry", "ForType", "binding lookup")
	}
	return b, nil
}

// ForSerializer returns the binding claiming a wire variant.
func (r *BindingRegistry) ForSerializer(serializer string) (*Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, exists := r.bySerializer[serializer]
	if !exists {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: no binding for serializer %q", errors.ErrInvalidConfig, serializer),
			"BindingRegistry", "ForSerializer", "binding lookup")
	}
	return b, nil
}

// defaultBindings holds the bindings registered at startup.
var defaultBindings = NewBindingRegistry()

// RegisterBinding registers a binding with the default registry.
func RegisterBinding(b *Binding) error {
	return defaultBindings.Register(b)
}

// MustRegisterBinding registers a binding and panics on failure.
// Intended for use from init functions.
func MustRegisterBinding(b *Binding) {
	if err := RegisterBinding(b); err != nil {
		panic("model: " + err.Error())
	}
}

// BindingFor returns the default-registry binding for an entity type.
func BindingFor(t Type) (*Binding, error) {
	return defaultBindings.ForType(t)
}

// BindingForSerializer returns the default-registry binding claiming a
// wire variant.
func BindingForSerializer(serializer string) (*Binding, error) {
	return defaultBindings.ForSerializer(serializer)
}
