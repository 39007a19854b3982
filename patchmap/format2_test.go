package patchmap

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func cps(vs ...uint32) CodepointSet {
	s := CodepointSet{}
	for _, v := range vs {
		s[v] = true
	}
	return s
}

func feats(vs ...uint32) FeatureSet {
	s := FeatureSet{}
	for _, v := range vs {
		s[v] = true
	}
	return s
}

func sampleTable() Table {
	return Table{
		ID:          [4]uint32{0x3c2bfda0, 0x890625c9, 0x40c644de, 0xb1195627},
		URITemplate: "https://fonts.example.com/{id}.patch",
		Entries: []Entry{
			{Coverage: Coverage{Codepoints: cps(0x41, 0x42, 0x5A), Features: FeatureSet{}}, PatchIndex: 1, Encoding: GlyphKeyedBrotli},
			{Coverage: Coverage{Codepoints: cps(0x400, 0x410), Features: FeatureSet{}}, PatchIndex: 2, Encoding: GlyphKeyedBrotli},
			{Coverage: Coverage{Codepoints: cps(0x1F600), Features: feats(0x6C696761)}, PatchIndex: 10, Encoding: TableKeyedSharedBrotli},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	table := sampleTable()

	encoded, err := Serialize(table, false)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	decoded, err := Deserialize(encoded, false)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if diff := cmp.Diff(table, decoded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSerializeCanonical(t *testing.T) {
	table := sampleTable()

	first, err := Serialize(table, false)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	decoded, err := Deserialize(first, false)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	second, err := Serialize(decoded, false)
	if err != nil {
		t.Fatalf("Serialize (2nd pass): %v", err)
	}

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("re-serialization is not canonical (-1st +2nd):\n%s", diff)
	}
}

func TestEntryIndexDeltaConsistency(t *testing.T) {
	table := Table{
		Entries: []Entry{
			{Coverage: Coverage{Codepoints: cps(1)}, PatchIndex: 1, Encoding: GlyphKeyedBrotli},
			{Coverage: Coverage{Codepoints: cps(2)}, PatchIndex: 2, Encoding: GlyphKeyedBrotli},
			{Coverage: Coverage{Codepoints: cps(3)}, PatchIndex: 50, Encoding: GlyphKeyedBrotli},
			{Coverage: Coverage{Codepoints: cps(4)}, PatchIndex: 49, Encoding: GlyphKeyedBrotli},
			{Coverage: Coverage{Codepoints: cps(5)}, PatchIndex: 1000, Encoding: GlyphKeyedBrotli},
		},
	}

	encoded, err := Serialize(table, false)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	decoded, err := Deserialize(encoded, false)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	var got []uint32
	for _, e := range decoded.Entries {
		got = append(got, e.PatchIndex)
	}
	want := []uint32{1, 2, 50, 49, 1000}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decoded patch index sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultEncodingSelection(t *testing.T) {
	// Three entries glyph-keyed, one table-keyed: default should be
	// glyph-keyed (0), and only the odd one out needs an override byte.
	table := Table{
		Entries: []Entry{
			{Coverage: Coverage{Codepoints: cps(1)}, PatchIndex: 1, Encoding: GlyphKeyedBrotli},
			{Coverage: Coverage{Codepoints: cps(2)}, PatchIndex: 2, Encoding: GlyphKeyedBrotli},
			{Coverage: Coverage{Codepoints: cps(3)}, PatchIndex: 3, Encoding: TableKeyedSharedBrotli},
			{Coverage: Coverage{Codepoints: cps(4)}, PatchIndex: 4, Encoding: GlyphKeyedBrotli},
		},
	}

	encoded, err := Serialize(table, false)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if encoded[21] != byte(GlyphKeyedBrotli) {
		t.Errorf("default_encoding byte = %d, want %d", encoded[21], GlyphKeyedBrotli)
	}

	decoded, err := Deserialize(encoded, false)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	for _, e := range decoded.Entries {
		want := GlyphKeyedBrotli
		if e.PatchIndex == 3 {
			want = TableKeyedSharedBrotli
		}
		if e.Encoding != want {
			t.Errorf("entry %d: Encoding = %v, want %v", e.PatchIndex, e.Encoding, want)
		}
	}
}

func TestDeserializeWrongFormat(t *testing.T) {
	data := make([]byte, headerLength)
	data[0] = 3
	if _, err := Deserialize(data, false); err == nil {
		t.Fatal("Deserialize with format != 2 succeeded, want error")
	}
}

func TestDeserializeUnknownEncoding(t *testing.T) {
	data := make([]byte, headerLength)
	data[0] = 2
	data[21] = 3 // invalid default encoding
	if _, err := Deserialize(data, false); err == nil {
		t.Fatal("Deserialize with default_encoding=3 succeeded, want error")
	}
}

func TestDeserializeTruncated(t *testing.T) {
	table := sampleTable()
	full, err := Serialize(table, false)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	for n := 0; n < len(full); n++ {
		if _, err := Deserialize(full[:n], false); err == nil {
			t.Errorf("Deserialize(truncated to %d/%d) succeeded, want error", n, len(full))
		}
	}
}

func TestSerializeLimitExceeded(t *testing.T) {
	var entries []Entry
	for i := 0; i < 0x10001; i++ {
		entries = append(entries, Entry{Coverage: Coverage{Codepoints: cps(uint32(i))}, PatchIndex: uint32(i + 1)})
	}
	_, err := Serialize(Table{Entries: entries}, false)
	if err == nil {
		t.Fatal("Serialize with >0xFFFF entries succeeded, want error")
	}
}

func TestSerializeSplitsExtensionEntries(t *testing.T) {
	table := Table{
		Entries: []Entry{
			{Coverage: Coverage{Codepoints: cps(1)}, PatchIndex: 1, IsExtension: false},
			{Coverage: Coverage{Codepoints: cps(2)}, PatchIndex: 2, IsExtension: true},
		},
	}

	mainBytes, err := Serialize(table, false)
	if err != nil {
		t.Fatalf("Serialize(main): %v", err)
	}
	mainDecoded, err := Deserialize(mainBytes, false)
	if err != nil {
		t.Fatalf("Deserialize(main): %v", err)
	}
	if len(mainDecoded.Entries) != 1 || mainDecoded.Entries[0].PatchIndex != 1 {
		t.Errorf("main pass entries = %+v, want just patch 1", mainDecoded.Entries)
	}

	extBytes, err := Serialize(table, true)
	if err != nil {
		t.Fatalf("Serialize(ext): %v", err)
	}
	extDecoded, err := Deserialize(extBytes, true)
	if err != nil {
		t.Fatalf("Deserialize(ext): %v", err)
	}
	if len(extDecoded.Entries) != 1 || extDecoded.Entries[0].PatchIndex != 2 {
		t.Errorf("ext pass entries = %+v, want just patch 2", extDecoded.Entries)
	}
}

func FuzzDeserialize(f *testing.F) {
	encoded, _ := Serialize(sampleTable(), false)
	f.Add(encoded)
	f.Fuzz(func(t *testing.T, data []byte) {
		table, err := Deserialize(data, false)
		if err != nil {
			return
		}
		encoded, err := Serialize(table, false)
		if err != nil {
			t.Fatalf("Serialize(Deserialize(data)) failed: %v", err)
		}
		table2, err := Deserialize(encoded, false)
		if err != nil {
			t.Fatalf("Deserialize(Serialize(Deserialize(data))) failed: %v", err)
		}
		if len(table.Entries) != len(table2.Entries) {
			t.Fatalf("entry count changed across round trip: %d != %d", len(table.Entries), len(table2.Entries))
		}
	})
}
