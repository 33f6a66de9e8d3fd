// Package broadcast implements high score fan-out: the trigger that decides
// whether an accepted score is announced, and the engine that delivers the
// announcement to every reachable connection, pruning the ones that fail.
package broadcast
