package fallback

import (
	"bytes"
	"context"
	"testing"
)

func TestDummyEchoesMessage(t *testing.T) {
	var c Client = Dummy{}
	got, err := c.Fallback(context.Background(), []byte{0x01, 0x02, 0x03})
	if err != nil {
		t.Fatalf("Fallback: %v", err)
	}
	if !bytes.Equal(got, []byte{0x01, 0x02, 0x03}) {
		t.Fatalf("got % x, want % x", got, []byte{0x01, 0x02, 0x03})
	}
}

func TestRandomKeyIsUnique(t *testing.T) {
	a, b := randomKey(), randomKey()
	if a == b {
		t.Fatal("expected two distinct random keys")
	}
	if len(a) != 32 {
		t.Fatalf("key length = %d, want 32 hex chars", len(a))
	}
}
