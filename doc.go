// Package bthost provides a Bluetooth HCI host stack: a typed command,
// event and ACL data layer over a raw byte transport to a controller,
// plus GAP-level adapter initialization, LE discovery and LE connection
// establishment on top of it.
package bthost
