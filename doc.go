// Package fleetbridge provides the authenticated HTTP client used by
// fleetbridge tooling to talk to the logistics backends (company master data,
// trip management, drivers, notifications, analytics).
//
// The centrepiece is the Coordinator: it attaches the bearer token to every
// outbound request, detects credential expiry, and recovers by refreshing the
// token pair exactly once no matter how many requests expire at the same
// time. Callers whose requests fail while a refresh is already underway wait
// for that refresh and share its outcome; no redundant refresh calls are ever
// issued. When a refresh cannot succeed the coordinator clears all credential
// state and signals the application once that a fresh login is required.
package fleetbridge
