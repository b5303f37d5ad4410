// Package printing holds the printable document of a submitted order and the
// page settings it is laid out with.
package printing
