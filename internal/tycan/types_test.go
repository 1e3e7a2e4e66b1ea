package tycan

import "testing"

func TestCANIDEncodeDecode(t *testing.T) {
	cases := []struct {
		name string
		id   canID
		want uint32
	}{
		{"single", canID{pid: 0x12, ftype: FrameTypeSingle, destID: 0x2a, srcID: 0}, 0x54212},
		{"multi_first", canID{pid: 0x56, ftype: FrameTypeMultiFirst, destID: 0, srcID: 0x2a}, 0x5400456},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.id.encode(); got != c.want {
				t.Fatalf("encode() = 0x%x, want 0x%x", got, c.want)
			}
			decoded := decodeID(c.want)
			if decoded != c.id {
				t.Fatalf("decode(0x%x) = %+v, want %+v", c.want, decoded, c.id)
			}
		})
	}
}

func TestIDFilterMaskMatchesDestBits(t *testing.T) {
	id := canID{pid: 0x12, ftype: FrameTypeSingle, destID: 0x2a, srcID: 0}
	raw := id.encode()
	if got, want := raw&IDFilterMask, uint32(0x2a)<<IDFilterOffset; got != want {
		t.Fatalf("filter mask selects 0x%x, want 0x%x", got, want)
	}
}

func TestChecksum(t *testing.T) {
	if got := checksum([]byte{0x01, 0x02, 0x03}); got != 0x06 {
		t.Fatalf("checksum = 0x%x, want 0x06", got)
	}
	if got := checksum([]byte{0xff, 0x02}); got != 0x01 {
		t.Fatalf("wrapping checksum = 0x%x, want 0x01", got)
	}
}
