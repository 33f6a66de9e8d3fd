// Package app provides the application service layer.
//
// Orchestrates use cases: score submission and leaderboard reads. Sits
// between HTTP handlers and domain components. Depends on domain interfaces,
// not concrete implementations.
package app
