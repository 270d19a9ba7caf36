// Package slogx provides slog.Attr helpers for the address types used
// throughout the stack, so log lines read as dotted-quad / colon-hex
// instead of raw byte dumps.
package slogx

import (
	"fmt"
	"log/slog"
)

// IPv4 returns a slog.Attr rendering a 4-byte IPv4 address in dotted-quad
// form.
func IPv4(key string, addr [4]byte) slog.Attr {
	return slog.String(key, fmt.Sprintf("%d.%d.%d.%d", addr[0], addr[1], addr[2], addr[3]))
}

// MAC returns a slog.Attr rendering a 6-byte hardware address in
// colon-hex form.
func MAC(key string, addr [6]byte) slog.Attr {
	return slog.String(key, fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		addr[0], addr[1], addr[2], addr[3], addr[4], addr[5]))
}
