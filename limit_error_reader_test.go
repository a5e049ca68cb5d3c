// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package export

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestReadBytes(t *testing.T) {
	tests := []struct {
		name       string
		limit      int64
		input      string
		bufferSize int
		expectN    int64
		wantErr    bool
	}{
		{
			name:       "Under limit",
			limit:      10,
			input:      "12345",
			bufferSize: 5,
			expectN:    5,
			wantErr:    false,
		},
		{
			name:       "At limit",
			limit:      5,
			input:      "12345",
			bufferSize: 5,
			expectN:    5,
			wantErr:    false,
		},
		{
			name:       "Over limit",
			limit:      4,
			input:      "12345",
			bufferSize: 5,
			expectN:    4,
			wantErr:    false,
		},
		{
			name:       "Under limit with buffer",
			limit:      10,
			input:      "12345",
			bufferSize: 2,
			expectN:    2,
			wantErr:    false,
		},
		{
			name:       "Unlimited",
			limit:      -1,
			input:      "12345",
			bufferSize: 5,
			expectN:    5,
			wantErr:    false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r := strings.NewReader(test.input)
			l := newLimitErrorReader(r, test.limit)
			buf := make([]byte, test.bufferSize)
			n, err := l.Read(buf)
			if (err != nil) != test.wantErr {
				t.Fatalf("Read() error = %v, wantErr %v", err, test.wantErr)
			}
			if int64(n) != test.expectN {
				t.Errorf("Read() = %v, want %v", n, test.expectN)
			}
			if l.ReadBytes() != test.expectN {
				t.Errorf("ReadBytes() = %v, want %v", l.ReadBytes(), test.expectN)
			}
		})
	}
}

// TestLimitErrorReader_ReadAll tests that the limit is only an error if the
// source holds more data.
func TestLimitErrorReader_ReadAll(t *testing.T) {
	tests := []struct {
		name    string
		limit   int64
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "Under limit",
			limit: 10,
			input: "12345",
			want:  "12345",
		},
		{
			name:  "At limit",
			limit: 5,
			input: "12345",
			want:  "12345",
		},
		{
			name:    "Over limit",
			limit:   4,
			input:   "12345",
			want:    "1234",
			wantErr: true,
		},
		{
			name:  "Unlimited",
			limit: -1,
			input: "12345",
			want:  "12345",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			l := newLimitErrorReader(strings.NewReader(test.input), test.limit)
			got, err := io.ReadAll(l)
			if (err != nil) != test.wantErr {
				t.Fatalf("ReadAll() error = %v, wantErr %v", err, test.wantErr)
			}
			if test.wantErr && !errors.Is(err, errReadLimitExceeded) {
				t.Errorf("ReadAll() error = %v, want %v", err, errReadLimitExceeded)
			}
			if string(got) != test.want {
				t.Errorf("ReadAll() = %q, want %q", got, test.want)
			}
		})
	}
}
