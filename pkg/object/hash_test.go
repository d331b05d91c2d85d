package object

import (
	"bytes"
	"testing"
)

func TestHashBlobKnownVectors(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    Hash
	}{
		{name: "empty", content: nil, want: "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391"},
		{name: "no newline", content: []byte("hello world"), want: "95d09f2b10159347eece71399a7e2e907ea3df4f"},
		{name: "trailing newline", content: []byte("hello world\n"), want: "3b18e512dba79e4c8300dd08aeb37f8e728b8dad"},
		{name: "single byte", content: []byte("x"), want: "c1b0730e0133447badcfd47fd144e254807b06e1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := HashBlob(tc.content); got != tc.want {
				t.Fatalf("HashBlob(%q) = %s, want %s", tc.content, got, tc.want)
			}
		})
	}
}

func TestHashBlobDeterministic(t *testing.T) {
	data := bytes.Repeat([]byte("abc\x00\xff"), 1000)
	first := HashBlob(data)
	for i := 0; i < 10; i++ {
		if got := HashBlob(append([]byte(nil), data...)); got != first {
			t.Fatalf("iteration %d: HashBlob = %s, want %s", i, got, first)
		}
	}
	if err := ValidateHash(first); err != nil {
		t.Fatalf("ValidateHash(%s): %v", first, err)
	}
}

func TestHashBlobDiffersFromRawDigest(t *testing.T) {
	// The envelope header must be part of the digest.
	if HashBlob([]byte("a")) == HashObject(TypeTree, []byte("a")) {
		t.Fatal("blob and tree envelopes produced the same hash")
	}
}

func TestValidateHash(t *testing.T) {
	tests := []struct {
		in      Hash
		wantErr bool
	}{
		{in: "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391"},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "E69DE29BB2D1D6434B8B29AE775AD8C2E48C5391", wantErr: true},
		{in: "z69de29bb2d1d6434b8b29ae775ad8c2e48c5391", wantErr: true},
	}
	for _, tc := range tests {
		err := ValidateHash(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("ValidateHash(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
	}
}
