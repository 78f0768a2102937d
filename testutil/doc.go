// Package testutil provides in-memory collaborators and fixtures for
// exercising the mapping engine without a network or a broker.
package testutil
