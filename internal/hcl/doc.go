// Package hcl provides the concrete HCL implementation for the sweep loading
// and override evaluation interfaces defined in the `config` package.
// It is responsible for all file parsing, HCL-to-model translation, and
// CTY-to-Go value conversion.
package hcl
