package ldap

import (
	"bytes"
	"reflect"
	"testing"
)

func TestIntSize(t *testing.T) {
	tests := []struct {
		Int  int64
		Size int
	}{
		{0, 1},
		{1, 1},
		{127, 1},
		{128, 2},
		{0xffff, 3},
		{-1, 1},
		{-128, 1},
		{-129, 2},
		{-32768, 2},
	}

	for _, is := range tests {
		if n := intSize(is.Int); n != is.Size {
			t.Errorf("intSize(%d) = %d. Want %d", is.Int, n, is.Size)
		}
	}
}

func TestEncodeDecode(t *testing.T) {
	var tests []*Packet

	pkt := NewPacket(ClassUniversal, false, TagSequence, nil)
	pkt.AddItem(NewPacket(ClassUniversal, true, TagInteger, 0x1234))
	tests = append(tests, pkt)

	// Boundary content lengths around the short/long length form switch.
	for _, n := range []int{0, 127, 128, 255, 256} {
		b := make([]byte, n)
		for i := 0; i < len(b); i++ {
			b[i] = byte(i)
		}
		pkt = NewPacket(ClassUniversal, false, TagSequence, nil)
		pkt.AddItem(NewPacket(ClassUniversal, true, TagOctetString, b))
		tests = append(tests, pkt)
	}

	pkt = NewPacket(ClassUniversal, false, TagSequence, nil)
	pkt.AddItem(NewPacket(ClassUniversal, true, TagUTF8String, "Testing"))
	pkt.AddItem(NewPacket(ClassUniversal, true, TagBoolean, true))
	pkt.AddItem(NewPacket(ClassUniversal, true, TagBoolean, false))
	pkt.AddItem(NewPacket(ClassUniversal, true, TagEnumerated, 2))
	tests = append(tests, pkt)

	// Signed integers use minimal two's complement.
	pkt = NewPacket(ClassUniversal, false, TagSequence, nil)
	for _, v := range []int{0, 1, 127, 128, 255, 256, -1, -128, -129, -70000} {
		pkt.AddItem(NewPacket(ClassUniversal, true, TagInteger, v))
	}
	tests = append(tests, pkt)

	// Sets, nested sequences and tagged variants.
	pkt = NewPacket(ClassUniversal, false, TagSequence, nil)
	set := pkt.AddItem(NewPacket(ClassUniversal, false, TagSet, nil))
	set.AddItem(NewPacket(ClassUniversal, true, TagOctetString, []byte("a")))
	set.AddItem(NewPacket(ClassUniversal, true, TagOctetString, []byte("b")))
	app := pkt.AddItem(NewPacket(ClassApplication, false, 3, nil))
	app.AddItem(NewPacket(ClassContext, true, 0, []byte("ctx")))
	app.AddItem(NewPacket(ClassContext, false, 1, nil)).
		AddItem(NewPacket(ClassUniversal, true, TagInteger, 7))
	tests = append(tests, pkt)

	for _, pkt := range tests {
		b := &bytes.Buffer{}
		if err := pkt.Write(b); err != nil {
			t.Fatal(err)
		}
		pkt2, _, err := ReadPacket(b)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(pkt, pkt2) {
			t.Errorf("Decode(Encode(%+v)) != %+v", pkt, pkt2)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		Name string
		Data []byte
	}{
		{"short header", []byte{0x30}},
		{"indefinite length", []byte{0x04, 0x80}},
		{"too many length bytes", []byte{0x04, 0x89, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{"truncated content", []byte{0x04, 0x05, 'a', 'b'}},
		{"truncated long form", []byte{0x04, 0x82, 0x01}},
		{"bool content length", []byte{0x01, 0x02, 0x00, 0x00}},
		{"empty integer", []byte{0x02, 0x00}},
	}

	for _, tc := range tests {
		if _, _, err := ParsePacket(tc.Data); err == nil {
			t.Errorf("%s: expected decode error", tc.Name)
		} else if _, ok := err.(MalformedEncodingError); !ok {
			t.Errorf("%s: error is %T, want MalformedEncodingError", tc.Name, err)
		}
	}
}

func TestReadPacketShortStream(t *testing.T) {
	// A stream that ends before the declared length is satisfied is a
	// read error, not a hang.
	b := bytes.NewReader([]byte{0x30, 0x10, 0x02, 0x01})
	if _, _, err := ReadPacket(b); err == nil {
		t.Fatal("expected error for short stream")
	}
}
