package cache

import (
	"bytes"
	"testing"
)

func TestCodec_RawBelowThreshold(t *testing.T) {
	c := codec{threshold: 1024}
	stored := c.encode([]byte("small"))

	if stored[0] != encodingRaw {
		t.Errorf("Expected raw encoding, got 0x%02x", stored[0])
	}

	out, err := c.decode(stored)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(out) != "small" {
		t.Errorf("Expected 'small', got %q", out)
	}
}

func TestCodec_CompressRoundTrip(t *testing.T) {
	c := codec{threshold: 64}
	value := bytes.Repeat([]byte("policy data "), 100)

	stored := c.encode(value)
	if stored[0] != encodingBrotli {
		t.Errorf("Expected brotli encoding, got 0x%02x", stored[0])
	}
	if len(stored) >= len(value) {
		t.Errorf("Expected compressed entry smaller than %d bytes, got %d", len(value), len(stored))
	}

	out, err := c.decode(stored)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !bytes.Equal(out, value) {
		t.Error("Round-tripped value differs from original")
	}
}

func TestCodec_DisabledAlwaysRaw(t *testing.T) {
	c := codec{}
	value := bytes.Repeat([]byte("x"), 4096)

	stored := c.encode(value)
	if stored[0] != encodingRaw {
		t.Errorf("Expected raw encoding with compression off, got 0x%02x", stored[0])
	}
}

func TestCodec_DecodeToleratesEitherEncoding(t *testing.T) {
	// The threshold can be toggled live; reads must understand both.
	value := bytes.Repeat([]byte("committee"), 50)
	compressed := codec{threshold: 1}.encode(value)
	raw := codec{}.encode(value)

	reader := codec{}
	for _, stored := range [][]byte{compressed, raw} {
		out, err := reader.decode(stored)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if !bytes.Equal(out, value) {
			t.Error("Decoded value differs from original")
		}
	}
}

func TestCodec_DecodeRejectsGarbage(t *testing.T) {
	c := codec{}
	if _, err := c.decode(nil); err == nil {
		t.Error("Expected error for empty entry")
	}
	if _, err := c.decode([]byte{0xff, 0x01}); err == nil {
		t.Error("Expected error for unknown encoding byte")
	}
}
