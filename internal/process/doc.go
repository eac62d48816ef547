// Package process supervises the external collaborators of the daemon.
//
// Motion detection and DHT22 acquisition run as separate programs that talk
// to the daemon over MQTT. When they are listed under `collaborators` in the
// configuration, the daemon starts them, restarts them with exponential
// backoff when they exit, and stops them on shutdown.
//
// Features:
//   - Start/stop with SIGTERM then SIGKILL after a grace period
//   - Restart on unexpected exit, backoff doubling up to a cap
//   - Backoff reset once a run has been stable for a while
//   - Output captured line by line into the daemon log
//
// Example usage:
//
//	mgr := process.NewManager(process.Config{
//	    Name:    "motion",
//	    Command: "/usr/local/bin/birdhouse-motion",
//	    Args:    []string{"--broker", "tcp://localhost:1883"},
//	})
//
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Stop()
package process
