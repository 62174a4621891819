// Package inmemorystore provides a thread-safe, in-memory case store with the
// same lifecycle contract as casestore.FileStore. It is suitable for tests and
// dry runs where solver output never needs to survive the process.
package inmemorystore
