// SPDX-License-Identifier: MPL-2.0

package codec

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/esm-tools/esmenv/pkg/tree"
)

func TestEncode(t *testing.T) {
	t.Parallel()

	got, err := Encode(tree.SequenceOf("A=1", "B=2", "A=1"))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	wantKeys := []string{"A=1[(0)][(list)]", "B=2[(0)][(list)]", "A=1[(1)][(list)]"}
	if diff := cmp.Diff(wantKeys, got.Keys()); diff != "" {
		t.Errorf("Encode() keys mismatch (-want +got):\n%s", diff)
	}
	for k, v := range got.All() {
		if want := Decode(k, v).Name; v != want {
			t.Errorf("value for %q = %v, want %q", k, v, want)
		}
	}
}

func TestEncode_EmptySequence(t *testing.T) {
	t.Parallel()

	got, err := Encode([]any{})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if got.Len() != 0 {
		t.Errorf("Encode([]).Len() = %d, want 0", got.Len())
	}
}

func TestEncode_RejectsNonSequence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input any
	}{
		{"scalar", "A=1"},
		{"mapping", tree.MappingOf("A", "1")},
		{"nested mapping item", []any{tree.MappingOf("A", "1")}},
		{"nil", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Encode(tt.input)
			if !errors.Is(err, ErrMalformedInput) {
				t.Fatalf("Encode() error = %v, want ErrMalformedInput", err)
			}
			var malformed *MalformedInputError
			if !errors.As(err, &malformed) {
				t.Errorf("error is not *MalformedInputError: %T", err)
			}
		})
	}
}

func TestEncodeInto_AvoidsExistingKeys(t *testing.T) {
	t.Parallel()

	dst, err := Encode(tree.SequenceOf("A=1"))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if err := EncodeInto(dst, tree.SequenceOf("A=1", "A=1")); err != nil {
		t.Fatalf("EncodeInto() error = %v", err)
	}

	want := []string{"A=1[(0)][(list)]", "A=1[(1)][(list)]", "A=1[(2)][(list)]"}
	if diff := cmp.Diff(want, dst.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestAppendMapping(t *testing.T) {
	t.Parallel()

	dst := tree.MappingOf("PATH", "/a", "A=1[(0)][(list)]", "A=1")
	src := tree.MappingOf("PATH", "/b", "NEW", "x", "A=1[(0)][(list)]", "A=1")
	AppendMapping(dst, src)

	want := []string{"PATH", "A=1[(0)][(list)]", "PATH[(1)]", "NEW", "A=1[(1)][(list)]"}
	if diff := cmp.Diff(want, dst.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	if got, _ := dst.String("PATH"); got != "/a" {
		t.Errorf("PATH = %q, want %q (never overwritten)", got, "/a")
	}
	if got, _ := dst.String("PATH[(1)]"); got != "/b" {
		t.Errorf("PATH[(1)] = %q, want %q", got, "/b")
	}

	// A second append of the same key takes the next free suffix.
	AppendMapping(dst, tree.MappingOf("PATH", "/c"))
	if got, _ := dst.String("PATH[(2)]"); got != "/c" {
		t.Errorf("PATH[(2)] = %q, want %q", got, "/c")
	}
}

func TestAppendValue(t *testing.T) {
	t.Parallel()

	dst := tree.NewMapping()
	inputs := []any{
		"A=1",
		tree.SequenceOf("B=2", "A=1"),
		tree.MappingOf("C", "3"),
		nil,
	}
	for _, in := range inputs {
		if err := AppendValue(dst, in); err != nil {
			t.Fatalf("AppendValue(%v) error = %v", in, err)
		}
	}

	want := []string{"A=1[(0)][(list)]", "B=2[(0)][(list)]", "A=1[(1)][(list)]", "C"}
	if diff := cmp.Diff(want, dst.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key      string
		wantKind EntryKind
		wantName string
	}{
		{"A=1[(0)][(list)]", EntryList, "A=1"},
		{"PATH=$PATH:/x[(12)][(list)]", EntryList, "PATH=$PATH:/x"},
		{"PATH[(1)]", EntryDeduplicated, "PATH"},
		{"PATH", EntryPlain, "PATH"},
		{"ARR[(x)]", EntryPlain, "ARR[(x)]"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Parallel()
			got := Decode(tt.key, "v")
			if got.Kind != tt.wantKind {
				t.Errorf("Decode(%q).Kind = %v, want %v", tt.key, got.Kind, tt.wantKind)
			}
			if got.Name != tt.wantName {
				t.Errorf("Decode(%q).Name = %q, want %q", tt.key, got.Name, tt.wantName)
			}
		})
	}
}
