// Package mapping drives bidirectional conversion between typed wire
// objects and persisted entities. The engine converts inbound objects
// through the field conversion registry inside one transaction scope,
// resolves remote identifiers with lookup-before-create deduplication,
// completes deferred reverse relations, and builds outbound activities
// with computed privacy addressing.
package mapping
