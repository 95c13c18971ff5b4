// Package discovery finds chargers on the local segment.
//
// A scan runs nmap as an ARP ping sweep (-sn -PR) over a CIDR range and
// classifies every host that answered. A host is a charger when its MAC
// address starts with the vendor OUI or its hostname starts with the vendor
// hostname prefix; both comparisons ignore case.
//
// ARP probing needs a raw socket. Scan checks for that privilege up front
// and reports a ScanError of kind permission instead of letting nmap fall
// back to TCP pings, which would return hosts without MAC addresses.
//
// A failed scan is not fatal. Callers treat the error as an empty result
// and carry on with the fallback device list.
package discovery
