package platform

import "testing"

func TestParseMapsLineHeap(t *testing.T) {
	region, ok := parseMapsLine("00400000-00452000 rw-p 00000000 00:00 0 [heap]")
	if !ok {
		t.Fatalf("expected a parsed region")
	}
	if region.Type != RegionHeap {
		t.Fatalf("expected RegionHeap, got %v", region.Type)
	}
	if region.BaseAddress != 0x400000 || region.Size != 0x452000-0x400000 {
		t.Fatalf("unexpected base/size: %#x/%#x", region.BaseAddress, region.Size)
	}
}

func TestParseMapsLineMappedFile(t *testing.T) {
	region, ok := parseMapsLine("7f0000000000-7f0000021000 r-xp 00000000 08:02 173521 /usr/lib/libc.so.6")
	if !ok {
		t.Fatalf("expected a parsed region")
	}
	if region.Type != RegionMappedFile {
		t.Fatalf("expected RegionMappedFile, got %v", region.Type)
	}
	if !region.Protection.Read || !region.Protection.Execute || region.Protection.Write {
		t.Fatalf("unexpected protection: %+v", region.Protection)
	}
}

func TestParseMapsLineAnonymousExecutable(t *testing.T) {
	region, ok := parseMapsLine("7f1000000000-7f1000001000 r-xp 00000000 00:00 0")
	if !ok {
		t.Fatalf("expected a parsed region")
	}
	if region.Type != RegionCode {
		t.Fatalf("expected RegionCode for anonymous executable mapping, got %v", region.Type)
	}
}

func TestParseMapsLineMalformed(t *testing.T) {
	if _, ok := parseMapsLine("not a maps line"); ok {
		t.Fatalf("expected malformed line to be rejected")
	}
}
