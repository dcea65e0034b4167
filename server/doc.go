// Package server provides the proxy through which a caller drives one
// deployed remote execution context: file and process operations forward
// 1:1 over the server's own relay connection, each gated by a declared
// caller privilege.
package server
