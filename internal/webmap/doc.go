// Package webmap models the declarative JSON document that defines a web map
// and implements the in-memory mutation primitives the engine builds on.
//
// The document is a tree of operational layers (nesting group layers and
// feature-layer references), a document-level list of named computed-value
// expressions, and per-layer filter and editing-form configuration.
//
// ARCHITECTURE:
//
// Typed nodes over raw remainders:
// Every modeled node is a concrete struct with typed fields for the keys the
// mutation tools touch, plus an unexported remainder map holding every other
// key verbatim. The whole document is persisted back to the content store in
// one call, so keys this package does not model (basemap, spatial reference,
// popup definitions, unknown form-element kinds) must survive an
// unmarshal/mutate/marshal round trip untouched.
//
// Sealed unions:
// LayerNode and FormElement are sealed interfaces. A raw layer carrying a
// "layers" array decodes as *GroupLayer (children win); everything else
// decodes as *FeatureLayerRef, whose address may be empty. A raw form element
// decodes by its "type" discriminator; unrecognized kinds decode as opaque
// elements that mutators skip and marshal re-emits byte for byte.
//
// Store order quirk:
// The content store persists a group's children in reverse display order.
// The tree walker restores display order when it enqueues children; the
// document itself keeps stored order so an untouched group round-trips
// unchanged.
package webmap
