// Package espm parses the fixed-size TES4 record that begins every
// Bethesda-engine plugin file, the minimum needed to tell whether a plugin
// behaves as a master and which other plugins it depends on. It does not
// interpret anything past that header.
package espm

// HeaderLayout selects the byte layout of the TES4 record header, which
// grew twice across the plugin format's history. Construction code selects
// the layout from the game a plugin belongs to; this package does not know
// about games, only byte layouts.
type HeaderLayout int

const (
	// LayoutLegacy is Morrowind's 16-byte header: signature, data size,
	// flags, form ID. There is no version-control timestamp field yet.
	LayoutLegacy HeaderLayout = iota

	// LayoutOldGen is Oblivion/Fallout 3/New Vegas's 20-byte header:
	// LayoutLegacy plus a 4-byte version-control timestamp field.
	LayoutOldGen

	// LayoutModern is Skyrim-and-later's 24-byte header: LayoutOldGen plus
	// a 2-byte form version and 2 bytes unused.
	LayoutModern
)

// Header is the subset of a plugin's TES4 record this module needs.
type Header struct {
	// IsMaster is set from the record's master flag (bit 0).
	IsMaster bool
	// Masters lists this plugin's master dependencies, in the order their
	// MAST subrecords appear.
	Masters []string
}

// Record flag and subrecord signature constants, adapted from the same
// constants the header parser this package is derived from uses.
const (
	flagMaster uint32 = 0x00000001

	signatureTES4 = "TES4"
	signatureMAST = "MAST"
	signatureDATA = "DATA"
)
