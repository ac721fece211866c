// Package dsched implements a userspace O(1) CPU scheduler core for a
// kernel-assisted delegated-scheduling framework: the kernel keeps final
// say over which CPU runs what, but defers every placement and
// preemption decision to this package via a per-CPU message channel and a
// transactional run-request commit protocol.
//
// The engine is built from a handful of collaborating layers:
//
//   - runtime/task      – the per-task scheduling record and time-slice
//     accounting
//   - runtime/runqueue  – the per-CPU dual-array (active/expired) runqueue
//   - runtime/dispatch  – kernel message handling and state transitions
//   - runtime/placement – CPU assignment and task migration
//   - runtime/agent     – the per-CPU commit loop and driver goroutine
//   - service/topo      – the kernel/enclave boundary (out of core scope)
//   - service/channel    – the per-CPU kernel notification queue
//   - service/alloc     – the task allocator pool
//
// End users typically interact with the engine via the high-level Service
// façade exposed by this root package:
//
//	cfg := dsched.DefaultConfig()
//	srv, _ := dsched.New(dsched.WithConfig(cfg), dsched.WithEnclave(enclave))
//	_ = srv.Runtime().Start(ctx)
//	defer srv.Runtime().Shutdown(ctx)
//
// For more details see SPEC_FULL.md and the individual sub-packages.
package dsched
