// Package dmzalloc lets a controller submit compute jobs to hosts it
// cannot reach directly by routing every interaction through a relay
// ("DMZ") host.
//
// The module is organised in pluggable layers:
//
//   - allocator: arbitrates resource requests and deploys remote servers
//   - server: the proxy driving one deployed execution context
//   - endpoint: the remote-side agent servicing both
//   - protocol: the transport contract, with in-memory and file-exchange
//     implementations
//   - access: per-operation caller-privilege declarations
//
// End-users typically interact through the Service façade exposed by this
// root package:
//
//	srv := dmzalloc.New(dmzalloc.WithAllocators(alloc))
//	best, estimate, _ := srv.BestEstimate(ctx, desc)
//	worker, _ := best.Deploy(ctx, "", desc, estimate.Criteria)
//	defer best.Release(ctx, worker)
package dmzalloc
