// Package allocator arbitrates resource requests for a remote host that
// is only reachable through a relay: it filters requests that are not
// meant for it, forwards feasibility queries, deploys remote servers and
// retires them on release.
package allocator
