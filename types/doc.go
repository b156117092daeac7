// Package types holds the small set of shared types used across the
// voiceflow runtime: capability identifiers, framework hints, and the
// service request passed through the registry to provider factories.
package types
