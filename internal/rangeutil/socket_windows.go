//go:build windows

package rangeutil

import "syscall"

// SetSocketOptions tunes a raw connection for high-thread-count transfers:
// disables Nagle's algorithm and grows the kernel socket buffers.
func SetSocketOptions(fd uintptr, bufferSize int) {
	syscall.SetsockoptInt(syscall.Handle(fd), syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1)
	syscall.SetsockoptInt(syscall.Handle(fd), syscall.SOL_SOCKET, syscall.SO_RCVBUF, bufferSize)
	syscall.SetsockoptInt(syscall.Handle(fd), syscall.SOL_SOCKET, syscall.SO_SNDBUF, bufferSize)
}
