// Package server wires the uartd components into an HTTP server.
//
// Server Lifecycle:
//  1. Build the logger from configuration
//  2. Load the label policy table
//  3. Create metrics, tracer, driver factory and session resolver
//  4. Setup middleware and routes
//  5. Serve until Shutdown, which closes sessions and devices
//
// ReloadPolicies swaps in a freshly loaded policy table without touching
// live sessions.
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv, err := server.NewServer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go srv.Run()
package server
