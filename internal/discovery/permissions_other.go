//go:build !unix

package discovery

// checkRawSocket is a no-op here. nmap reports missing privilege itself.
func checkRawSocket() error {
	return nil
}
