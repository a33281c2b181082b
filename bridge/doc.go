// Package bridge runs a blocking compilation engine on a background
// executor while the engine's helper requests are answered on the caller's
// side, where helpers may take as long as they need.
//
// # Architecture
//
//	Bridge     - lazily starts one executor and one shared region
//	executor   - runs requests one after another on its own goroutine
//	coordinate - one goroutine per request serving that request's port
//	Pending    - the future of a request, settled exactly once
//
// # Request Flow
//
//  1. Start hands the payload and a fresh port to the executor
//  2. The executor calls Engine.Compile with a blocking helper
//  3. Each helper call sends callHelper on the port and parks on the region
//  4. The coordinator runs the Helper, then announces the reply chunk by chunk
//  5. The executor sends result and the coordinator settles the Pending
//
// Helper failures and panics are answered with an error marker
// ({"__error": "message"}) so the executor is never left parked. A helper
// descriptor that cannot be decoded rejects the request immediately and is
// answered with a marker as well.
//
// # Shared Region
//
// The executor leases its region to the request it is running. Requests are
// processed strictly in turn, so transfers of concurrent requests never
// interleave.
package bridge
