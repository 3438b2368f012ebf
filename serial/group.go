// Package serial derives logical inventory groups from unit serial codes.
package serial

import "fmt"

const suffixLen = 3

// GroupKey returns the group a serial belongs to. A serial ending in three
// decimal digits belongs to the group named by its prefix; any other serial
// is a group of its own. Every grouped view must go through this function.
func GroupKey(serial string) string {
	n := len(serial)
	if n < suffixLen {
		return serial
	}
	for i := n - suffixLen; i < n; i++ {
		if serial[i] < '0' || serial[i] > '9' {
			return serial
		}
	}
	return serial[:n-suffixLen]
}

// Unit renders the serial of the i-th unit (1-based) of a batch.
func Unit(base string, i int) string {
	return fmt.Sprintf("%s%03d", base, i)
}
