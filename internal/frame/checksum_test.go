// Copyright 2026 The OpenRover Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package frame

import "testing"

func TestChecksum(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		want byte
	}{
		{
			name: "empty data",
			data: []byte{},
			want: 0xFF,
		},
		{
			name: "ping header for id 5",
			data: []byte{0x05, 0x02, 0x01},
			want: 0xF7,
		},
		{
			name: "status body for id 5",
			data: []byte{0x05, 0x03, 0x00, 0x14},
			want: 0xE3,
		},
		{
			name: "overflow wraps",
			data: []byte{0xFF, 0x01},
			want: 0xFF,
		},
		{
			name: "goal position write",
			data: []byte{0x01, 0x05, 0x03, 0x1E, 0x00, 0x02},
			want: 0xD6,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Checksum(tt.data); got != tt.want {
				t.Errorf("Checksum() = %#02x, want %#02x", got, tt.want)
			}
		})
	}
}
