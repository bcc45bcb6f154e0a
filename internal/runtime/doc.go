// Package runtime wires storage, services, channels, and background loops
// into a single-node engine instance. It exposes Open/Start/Stop/Close and a
// basic health check.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
//	rt.Start()
//	defer rt.Stop()
package runtime
