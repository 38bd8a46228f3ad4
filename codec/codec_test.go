package codec

import (
	"strings"
	"testing"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type record struct {
	ID        int64     `json:"id" msgpack:"id" cbor:"id"`
	Title     string    `json:"title" msgpack:"title" cbor:"title"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at" cbor:"created_at"`
}

func roundTrip[V any](t *testing.T, c Codec[V], v V) V {
	t.Helper()
	b, err := c.Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return got
}

func TestStructCodecs(t *testing.T) {
	want := record{ID: 1, Title: "bob", CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}

	cases := map[string]Codec[record]{
		"json":    JSON[record]{},
		"msgpack": Msgpack[record]{},
		"cbor":    MustCBOR[record](),
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			got := roundTrip(t, c, want)
			if got.ID != want.ID || got.Title != want.Title || !got.CreatedAt.Equal(want.CreatedAt) {
				t.Fatalf("got %+v want %+v", got, want)
			}
		})
	}
}

func TestCBORIsDeterministic(t *testing.T) {
	c := MustCBOR[map[string]int]()
	a, err := c.Encode(map[string]int{"b": 2, "a": 1, "c": 3})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, err := c.Encode(map[string]int{"c": 3, "a": 1, "b": 2})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("equal maps encoded differently")
	}
}

func TestProtobuf(t *testing.T) {
	c := NewProtobuf(func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) })
	got := roundTrip[*wrapperspb.StringValue](t, c, wrapperspb.String("bob"))
	if !proto.Equal(got, wrapperspb.String("bob")) {
		t.Fatalf("got %v", got)
	}
}

func TestRawCodecs(t *testing.T) {
	if got := roundTrip[[]byte](t, Bytes{}, []byte{0, 1, 2}); string(got) != "\x00\x01\x02" {
		t.Fatalf("Bytes: got %x", got)
	}
	if got := roundTrip[string](t, String{}, "héllo"); got != "héllo" {
		t.Fatalf("String: got %q", got)
	}
}

func TestLimit(t *testing.T) {
	c := Limit[string]{Inner: String{}, MaxDecode: 4}
	if _, err := c.Decode([]byte("12345")); err == nil {
		t.Fatalf("expected error for oversized payload")
	}
	if got, err := c.Decode([]byte("1234")); err != nil || got != "1234" {
		t.Fatalf("Decode at limit: got %q err %v", got, err)
	}
	unlimited := Limit[string]{Inner: String{}}
	if _, err := unlimited.Decode([]byte(strings.Repeat("x", 1<<16))); err != nil {
		t.Fatalf("MaxDecode=0 must disable the check: %v", err)
	}
}

func TestList(t *testing.T) {
	c := List[int64]{Inner: JSON[int64]{}}
	got := roundTrip[[]int64](t, c, []int64{3, 1, 2})
	if len(got) != 3 || got[0] != 3 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("got %v", got)
	}
	empty := roundTrip[[]int64](t, c, nil)
	if len(empty) != 0 {
		t.Fatalf("empty list decoded as %v", empty)
	}
	if _, err := c.Decode([]byte("[1,2]")); err == nil {
		t.Fatalf("expected error for non-list frame")
	}
}
