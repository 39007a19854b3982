package sfntfont

import (
	"testing"
)

func makeHead() []byte {
	head := make([]byte, 54)
	head[0] = 0x00
	head[1] = 0x01 // version major
	return head
}

func TestBuildParseRoundTrip(t *testing.T) {
	font := Font{
		ScalerType: 0x00010000,
		Tables: map[string][]byte{
			"head": makeHead(),
			"glyf": {1, 2, 3},
			"loca": {0, 0, 0, 3, 0, 0, 0, 3},
			"IFT ": {0xca, 0xfe},
		},
	}

	built, err := font.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	parsed, err := Parse(built)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if parsed.ScalerType != font.ScalerType {
		t.Errorf("ScalerType = %#x, want %#x", parsed.ScalerType, font.ScalerType)
	}
	for tag, want := range font.Tables {
		got, ok := parsed.Table(tag)
		if !ok {
			t.Errorf("table %q missing after round trip", tag)
			continue
		}
		if tag == "head" {
			continue // checksum adjustment mutates bytes 8:12
		}
		if string(got) != string(want) {
			t.Errorf("table %q = %v, want %v", tag, got, want)
		}
	}
}

func TestBuildOrdersGlyphOutlineTablesCorrectly(t *testing.T) {
	font := Font{
		Tables: map[string][]byte{
			"loca": {0},
			"glyf": {0},
			"gvar": {0},
			"head": makeHead(),
		},
	}

	built, err := font.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	gvarPos, glyfPos, locaPos := tableOffset(built, "gvar"), tableOffset(built, "glyf"), tableOffset(built, "loca")
	if !(gvarPos < glyfPos && glyfPos < locaPos) {
		t.Errorf("table order gvar=%d glyf=%d loca=%d, want gvar < glyf < loca", gvarPos, glyfPos, locaPos)
	}
}

func TestBuildChecksumAdjustmentIsStable(t *testing.T) {
	font := Font{Tables: map[string][]byte{"head": makeHead(), "glyf": {9, 9}}}

	first, err := font.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	parsed, err := Parse(first)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	second, err := parsed.Clone().Build()
	if err != nil {
		t.Fatalf("Build (2nd pass): %v", err)
	}

	if string(first) != string(second) {
		t.Error("rebuilding a parsed font did not reproduce identical bytes")
	}
}

// tableOffset returns the file offset of the table body that data's table
// directory records for tag, or -1 if the directory has no such tag. The
// directory itself is sorted by tag, so body offsets are what show the
// order in which Build wrote the tables.
func tableOffset(data []byte, tag string) int {
	numTables := int(data[4])<<8 | int(data[5])
	for i := 0; i < numTables; i++ {
		rec := data[12+16*i:]
		if string(rec[:4]) == tag {
			return int(rec[8])<<24 | int(rec[9])<<16 | int(rec[10])<<8 | int(rec[11])
		}
	}
	return -1
}
