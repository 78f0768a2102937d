// Package model defines the persisted entity graph and the field
// conversion registry binding each entity type to exactly one wire
// variant. Bindings declare, per entity type, the ordered convertible
// fields with their bidirectional converters, the reverse-collection
// fields resolved after persistence, and the hooks used by the outbound
// activity builder.
package model
