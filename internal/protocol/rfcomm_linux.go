//go:build linux

// internal/protocol/rfcomm_linux.go
package protocol

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// dialRFCOMM opens a connected RFCOMM socket and hands it to the runtime poller,
// so the returned file honours read and write deadlines.
func dialRFCOMM(ctx context.Context, address BDAddr, channel uint8, connectTimeout time.Duration) (deadlineStream, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, fmt.Errorf("failed to create RFCOMM socket: %w", err)
	}

	// connect(2) on a blocking socket gives up after SO_SNDTIMEO
	tv := unix.NsecToTimeval(connectTimeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_SNDTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to set connect timeout: %w", err)
	}

	sockaddr := &unix.SockaddrRFCOMM{
		Addr:    address.wireOrder(),
		Channel: channel,
	}

	done := make(chan error, 1)
	go func() {
		done <- unix.Connect(fd, sockaddr)
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = unix.Shutdown(fd, unix.SHUT_RDWR)
		<-done
		unix.Close(fd)
		return nil, ctx.Err()
	}
	if err != nil {
		unix.Close(fd)
		if err == unix.EINPROGRESS || err == unix.EAGAIN {
			return nil, fmt.Errorf("connect timed out after %s: %w", connectTimeout, unix.ETIMEDOUT)
		}
		return nil, err
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to set non-blocking mode: %w", err)
	}

	file := os.NewFile(uintptr(fd), fmt.Sprintf("rfcomm:%s:%d", address, channel))
	if file == nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to wrap RFCOMM socket")
	}
	return file, nil
}
