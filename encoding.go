package loadorder

import (
	"golang.org/x/text/encoding/charmap"
)

// The two conversions below are applied only to the active-plugins file:
// Morrowind, Oblivion and the Fallout/Skyrim active-plugins files are all
// written by the game engines themselves in Windows-1252, while a Textfile
// game's loadorder.txt is this library's own format and stays UTF-8.

// windows1252ToUTF8 decodes a Windows-1252 byte string into UTF-8. It never
// fails: every byte value 0x00-0xFF maps to some Unicode code point under
// Windows-1252, unlike the reverse direction.
func windows1252ToUTF8(s string) string {
	out, err := charmap.Windows1252.NewDecoder().String(s)
	if err != nil {
		// charmap's decoder cannot fail on a full byte range; fall back to
		// the raw bytes rather than panic if that ever changes upstream.
		return s
	}
	return out
}

// utf8ToWindows1252 encodes a UTF-8 string into Windows-1252. It fails with
// CodeBadFilename when s contains a rune outside the Windows-1252 repertoire
// (for example a plugin name with a CJK character), matching the original
// backend's windows1252 conversion failure mode.
func utf8ToWindows1252(s string) (string, error) {
	out, err := charmap.Windows1252.NewEncoder().String(s)
	if err != nil {
		return "", newError(CodeBadFilename, "%q cannot be represented in Windows-1252", s)
	}
	return out, nil
}
