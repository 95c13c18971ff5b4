//go:build unix

package discovery

import (
	"errors"
	"os"
	"syscall"
)

var errNoRawSocket = errors.New("ARP probing needs root or CAP_NET_RAW")

// checkRawSocket succeeds when the process can open a raw socket
func checkRawSocket() error {
	if os.Geteuid() == 0 {
		return nil
	}

	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_RAW, syscall.IPPROTO_ICMP)
	if err == nil {
		syscall.Close(fd)
		return nil
	}
	return errors.Join(errNoRawSocket, err)
}
