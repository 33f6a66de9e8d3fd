// Package server wires the HTTP surface: identity endpoints, score
// submission and leaderboard, the websocket endpoint for the single-process
// topology, gateway callbacks for the distributed one, and health/metrics.
package server
