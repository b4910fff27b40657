// Copyright 2026 The OpenRover Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package frame

// Checksum computes the packet checksum: the one's complement of the
// byte sum of everything after the start marker, excluding the
// checksum byte itself.
func Checksum(data []byte) byte {
	sum := byte(0)
	for _, b := range data {
		sum += b
	}
	return ^sum
}
