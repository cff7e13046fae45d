//go:build linux || darwin

package rangeutil

import "syscall"

// SetSocketOptions tunes a raw connection for high-thread-count transfers:
// disables Nagle's algorithm and grows the kernel socket buffers.
func SetSocketOptions(fd uintptr, bufferSize int) {
	syscall.SetsockoptInt(int(fd), syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1)
	syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_RCVBUF, bufferSize)
	syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_SNDBUF, bufferSize)
}
