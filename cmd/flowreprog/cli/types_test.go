package cli_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-flowreprog"
	"github.com/frobware/go-flowreprog/cmd/flowreprog/cli"
)

func TestParsePriority(t *testing.T) {
	tests := []struct {
		input    string
		expected flowreprog.Priority
	}{
		{"0", 0},
		{"10", 10},
		{" 42 ", 42},
		{"0x10", 16},
		{"0XFFFF", 65535},
		{"65535", 65535},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := cli.ParsePriority(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p.Value)
		})
	}
}

func TestParsePriority_InvalidInputs(t *testing.T) {
	tests := []struct {
		input       string
		errContains string
	}{
		{"", "cannot be empty"},
		{"65536", "out of range"},
		{"-1", "invalid syntax"},
		{"0xzz", "invalid syntax"},
		{"high", "invalid syntax"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := cli.ParsePriority(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestParseEtherType(t *testing.T) {
	tests := []struct {
		input    string
		expected uint16
	}{
		{"ipv4", 0x0800},
		{"IPv6", 0x86dd},
		{"arp", 0x0806},
		{"vlan", 0x8100},
		{"0x0800", 0x0800},
		{"2048", 0x0800},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			et, err := cli.ParseEtherType(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, et.Value)
		})
	}

	_, err := cli.ParseEtherType("ipx")
	require.Error(t, err)
}

func TestParseVlanID(t *testing.T) {
	v, err := cli.ParseVlanID("4095")
	require.NoError(t, err)
	assert.Equal(t, uint16(4095), v.Value)

	v, err = cli.ParseVlanID("0xfff")
	require.NoError(t, err)
	assert.Equal(t, uint16(4095), v.Value)

	_, err = cli.ParseVlanID("4096")
	require.ErrorContains(t, err, "out of range 0-4095")
}

func TestParseFrame(t *testing.T) {
	tests := []struct {
		input    string
		expected []byte
	}{
		{"00aaff", []byte{0x00, 0xaa, 0xff}},
		{"0x00AAFF", []byte{0x00, 0xaa, 0xff}},
		{"00:aa:ff", []byte{0x00, 0xaa, 0xff}},
		{" 00 aa\nff ", []byte{0x00, 0xaa, 0xff}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			f, err := cli.ParseFrame(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, f.Bytes)
		})
	}

	_, err := cli.ParseFrame("")
	require.ErrorContains(t, err, "cannot be empty")
	_, err = cli.ParseFrame("abc")
	require.ErrorContains(t, err, "invalid frame")
}
