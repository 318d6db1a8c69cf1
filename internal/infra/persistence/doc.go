// Package persistence groups the catalog storage backends: an in-memory
// transactional core and the sqlite and postgres snapshot stores built on it.
package persistence
