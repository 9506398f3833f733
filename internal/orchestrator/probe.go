package orchestrator

import (
	"fmt"
	"net"
	"time"
)

// tcpProbe checks that something is listening on host:port before any retry
// budget is spent on the external client. It is a plain TCP dial,
// independent of the gRPC client.
func tcpProbe(address string, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return fmt.Errorf("address %s is not reachable: %w", address, err)
	}
	return conn.Close()
}
