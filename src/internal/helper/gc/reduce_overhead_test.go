// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package gc

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferInterface(t *testing.T) {
	tests := []struct {
		name  string
		setup func(buf Buffer)
		check func(t *testing.T, buf Buffer)
	}{
		{
			name: "Write byte slice",
			setup: func(buf Buffer) {
				buf.Write([]byte("hello"))
			},
			check: func(t *testing.T, buf Buffer) {
				assert.Equal(t, "hello", buf.String())
				assert.Equal(t, 5, buf.Len())
			},
		},
		{
			name: "Multiple operations",
			setup: func(buf Buffer) {
				buf.Write([]byte("error"))
				buf.WriteString(" code: ")
				buf.WriteByte('5')
			},
			check: func(t *testing.T, buf Buffer) {
				assert.Equal(t, "error code: 5", buf.String())
			},
		},
		{
			name: "ReadFrom",
			setup: func(buf Buffer) {
				buf.ReadFrom(strings.NewReader("-----BEGIN CERTIFICATE-----"))
			},
			check: func(t *testing.T, buf Buffer) {
				assert.Equal(t, []byte("-----BEGIN CERTIFICATE-----"), buf.Bytes())
			},
		},
		{
			name: "WriteTo",
			setup: func(buf Buffer) {
				buf.WriteString("relayed body")
			},
			check: func(t *testing.T, buf Buffer) {
				var out bytes.Buffer
				n, err := buf.WriteTo(&out)
				require.NoError(t, err)
				assert.EqualValues(t, len("relayed body"), n)
				assert.Equal(t, "relayed body", out.String())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := Default.Get()
			defer func() {
				buf.Reset()
				Default.Put(buf)
			}()

			tt.setup(buf)
			tt.check(t, buf)
		})
	}
}

// foreignBuffer satisfies Buffer without being a pooled buffer.
type foreignBuffer struct{ bytes.Buffer }

func TestPool_PutForeignBuffer(t *testing.T) {
	assert.NotPanics(t, func() {
		Default.Put(&foreignBuffer{})
	}, "putting a non-pooled buffer must be ignored")
}

func TestPool_ResetBeforePut(t *testing.T) {
	buf := Default.Get()
	buf.WriteString("private key material")
	buf.Reset()
	Default.Put(buf)

	again := Default.Get()
	defer Default.Put(again)
	assert.Zero(t, again.Len(), "buffer from pool must start empty")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestReadAll(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		limit   int64
		want    string
		wantErr error
	}{
		{name: "No limit", input: "abcdef", limit: 0, want: "abcdef"},
		{name: "Under limit", input: "abc", limit: 10, want: "abc"},
		{name: "Exactly at limit", input: "abcd", limit: 4, want: "abcd"},
		{name: "Over limit", input: "abcde", limit: 4, wantErr: ErrTooLarge},
		{name: "Empty", input: "", limit: 4, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadAll(strings.NewReader(tt.input), tt.limit)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}

	t.Run("Reader error", func(t *testing.T) {
		_, err := ReadAll(failingReader{}, 0)
		assert.Error(t, err)
	})
}

func TestReadAll_ReturnsCopy(t *testing.T) {
	first, err := ReadAll(strings.NewReader("first"), 0)
	require.NoError(t, err)

	_, err = ReadAll(strings.NewReader("XXXXX"), 0)
	require.NoError(t, err)

	assert.Equal(t, "first", string(first), "returned slice must not alias pooled memory")
}

func TestReadAll_Concurrent(t *testing.T) {
	const workers = 32

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := range workers {
		go func(id int) {
			defer wg.Done()
			payload := strings.Repeat(string(rune('a'+id%26)), 1024)
			got, err := ReadAll(strings.NewReader(payload), 0)
			assert.NoError(t, err)
			assert.Equal(t, payload, string(got))
		}(i)
	}
	wg.Wait()
}
