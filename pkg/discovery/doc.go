// Package discovery announces the board on the local network with
// mDNS/DNS-SD and finds other boards.
//
// # Advertising
//
// Once the station has an address the board registers one service
// instance, by default of type _http._tcp in the local domain. TXT records
// describe the board:
//
//	board  board name
//	app    active application
//	fw     firmware version (optional)
//	cores  logical core count (optional)
//	addr   leased station address (optional)
//
// Keys follow the DNS-SD recommendation of at most 9 characters and each
// key=value pair must fit in 255 bytes.
//
// # Instance names
//
// Without a configured name, the instance is named <prefix>-<id> where id
// is the first 8 hex digits of the application-scoped machine ID. Hosts
// without a machine ID fall back to the OS hostname.
//
// # Browsing
//
// The browser aggregates answers by instance name so that a board
// reachable over several interfaces is reported once with all of its
// addresses.
package discovery
