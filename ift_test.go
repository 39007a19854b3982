package ift

import (
	"testing"

	"github.com/garretrieger/ift/patchmap"
	"github.com/garretrieger/ift/sfntfont"
)

func makeTestHead() []byte {
	head := make([]byte, 54)
	head[0], head[1] = 0x00, 0x01
	return head
}

func TestFromFontAndAddToFontRoundTrip(t *testing.T) {
	table := patchmap.Table{
		ID:          [4]uint32{1, 2, 3, 4},
		URITemplate: "https://example.com/{id}",
		Entries: []patchmap.Entry{
			{Coverage: patchmap.Coverage{Codepoints: patchmap.CodepointSet{0x41: true}}, PatchIndex: 1},
		},
	}
	tableBytes, err := patchmap.Serialize(table, false)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	font := sfntfont.Font{
		Tables: map[string][]byte{
			"head": makeTestHead(),
			"IFT ": tableBytes,
		},
	}
	fontBytes, err := font.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	parsed, err := FromFont(fontBytes)
	if err != nil {
		t.Fatalf("FromFont: %v", err)
	}
	if parsed.ID != table.ID {
		t.Errorf("ID = %v, want %v", parsed.ID, table.ID)
	}

	updated := parsed.RemovePatches(map[uint32]bool{1: true})
	newFontBytes, err := updated.AddToFont(fontBytes)
	if err != nil {
		t.Fatalf("AddToFont: %v", err)
	}

	reparsed, err := FromFont(newFontBytes)
	if err != nil {
		t.Fatalf("FromFont (2nd): %v", err)
	}
	if len(reparsed.Entries) != 0 {
		t.Errorf("reparsed.Entries = %+v, want empty after RemovePatches", reparsed.Entries)
	}
}

func TestFromFontMissingTable(t *testing.T) {
	font := sfntfont.Font{Tables: map[string][]byte{"head": makeTestHead()}}
	fontBytes, err := font.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, err := FromFont(fontBytes); err == nil {
		t.Fatal("FromFont on a font without an IFT table succeeded, want error")
	}
}
