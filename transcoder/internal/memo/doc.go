// Package memo provides the identity-keyed cache of compiled functions.
//
// A Cache memoizes one function per key, including results of failed
// builds. Builds run under a mutex shared by every cache of a compiler, so
// a build may recurse into other caches of the same group without lock
// ordering concerns. A key requested again while its own build is still
// running (a self-referential layout) resolves to a forwarding value that
// looks up the finished result on first use.
//
// This package is internal to the transcoder.
package memo
