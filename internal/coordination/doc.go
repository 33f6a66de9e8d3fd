// Package coordination provides Redis-based single-leader election so
// periodic jobs, such as the connection sweeper, run on exactly one
// instance at a time.
package coordination
