// Package store persists the run history: one SQLite row per scenario
// invocation, recording when it ran, how long it took, and whether it
// succeeded. Recording is best-effort from the caller's point of view;
// a history failure never fails a build.
package store
