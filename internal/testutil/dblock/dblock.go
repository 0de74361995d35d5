// Package dblock serialises Postgres integration tests across test binaries.
// go test runs packages in parallel; the repository and service suites share
// one database and truncate it, so each suite holds this lock while it runs.
package dblock

import (
	"net"
	"os"
	"time"
)

const defaultLockAddr = "127.0.0.1:45432"

// Acquire blocks until the lock is held and returns its release func. The
// lock is a listening TCP socket, so a crashed test binary frees it.
func Acquire() func() {
	addr := os.Getenv("PM_TEST_DBLOCK_ADDR")
	if addr == "" {
		addr = defaultLockAddr
	}
	for {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return func() { ln.Close() }
		}
		time.Sleep(50 * time.Millisecond)
	}
}
