// Package ir provides the value and hashing primitives shared by every other
// nodegraph package.
//
// Port values and node configuration are expressed as IRValue, a sealed
// tagged union. There is no float variant: configuration feeds content
// hashes, and hashes must be reproducible across platforms.
//
// ir imports nothing internal.
package ir
