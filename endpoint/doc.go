// Package endpoint implements the remote-side agent the proxy layer talks
// to: it answers feasibility queries against configured capacity, creates
// a sandbox per deployed server and services each server's file and
// process operations, including the path-legality checks that confine
// every request to its sandbox.
package endpoint
