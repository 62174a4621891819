// Package config defines the format-agnostic model of a sweep definition,
// along with the interfaces (Loader, Evaluator) for loading it and for
// computing the per-point overrides it describes.
//
// The `config.Sweep` model is the single source of truth for the `app`
// package. Concrete implementations of the interfaces, such as for HCL, are
// provided in separate packages.
package config
