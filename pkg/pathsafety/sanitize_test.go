package pathsafety

import "testing"

func TestSanitizeNameIdempotent(t *testing.T) {
	cases := []string{
		"normal.log",
		"has/slash",
		"has\\backslash",
		"CON",
		"con.txt",
		"trailing dots...",
		"\x01\x02control",
		"",
	}
	for _, c := range cases {
		once := SanitizeName(c)
		twice := SanitizeName(once)
		if once != twice {
			t.Errorf("SanitizeName(%q) = %q, SanitizeName(that) = %q; not idempotent", c, once, twice)
		}
	}
}

func TestSanitizeNameRejectsSeparators(t *testing.T) {
	result := SanitizeName("a/b\\c")
	if result == "a/b\\c" {
		t.Fatalf("separators were not escaped: %q", result)
	}
}

func TestSanitizeNameReservedDeviceName(t *testing.T) {
	result := SanitizeName("CON")
	if result == "CON" {
		t.Fatalf("reserved device name was not escaped: %q", result)
	}
}

func TestSanitizeNameLengthCap(t *testing.T) {
	long := make([]byte, 400)
	for i := range long {
		long[i] = 'a'
	}
	result := SanitizeName(string(long))
	if len([]rune(result)) > maxSanitizedNameLength {
		t.Fatalf("sanitized name exceeds length cap: %d runes", len([]rune(result)))
	}
}

func TestSanitizeNameEmpty(t *testing.T) {
	if SanitizeName("") != "_" {
		t.Fatalf("expected placeholder for empty name")
	}
}
