// Package activity provides the typed wire representation for the
// ActivityStreams exchange protocol. Each protocol object is a typed
// variant registered against its "type" discriminant; Construct validates
// an untyped payload into a variant, and Serialize re-emits the declared
// fields together with the protocol namespace marker.
package activity
