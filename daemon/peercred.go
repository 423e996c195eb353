// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// sameUserPeer reports whether the connection's peer runs under the
// same uid as this process, read from SO_PEERCRED.
func sameUserPeer(conn net.Conn) (bool, error) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return false, fmt.Errorf("daemon: peer credentials need a unix socket, got %T", conn)
	}
	raw, err := unixConn.SyscallConn()
	if err != nil {
		return false, fmt.Errorf("daemon: accessing raw connection: %w", err)
	}
	var cred *unix.Ucred
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return false, fmt.Errorf("daemon: reading peer credentials: %w", err)
	}
	if credErr != nil {
		return false, fmt.Errorf("daemon: reading peer credentials: %w", credErr)
	}
	return cred.Uid == uint32(os.Getuid()), nil
}
