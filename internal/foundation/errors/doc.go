// Package errors provides the classified error primitives used across incbuild.
//
// Errors carry a category (config, not_found, build, ...), a severity and a
// free-form context map. The fluent ErrorBuilder keeps construction uniform:
//
//	err := errors.NotFoundError("tracked resource does not exist").
//		WithContext("path", path).
//		Build()
//
// CLIErrorAdapter maps classified errors onto process exit codes and
// user-facing messages.
package errors
