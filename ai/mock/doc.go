// Package mock provides test doubles for the ai package interfaces.
//
// Mocks return deterministic values by default and allow behavior injection
// via function fields, so pipeline logic can be tested without external AI
// services.
package mock
