package loadorder

import (
	"io"
	"os"
	"path/filepath"

	"github.com/loadorder-go/loadorder/internal/espm"
)

// Header is the subset of a plugin file's own header this package needs:
// whether it behaves as a master, and which other plugins it depends on.
type Header struct {
	IsMaster bool
	Masters  []string
}

// HeaderReader parses a plugin's header from an open file. It is the one
// external collaborator this package does not implement a policy for: a
// caller with its own, richer plugin parser can supply one instead of the
// bundled default.
type HeaderReader interface {
	ParseHeader(r io.Reader, game GameID) (Header, error)
}

// DefaultHeaderReader returns the bundled HeaderReader, which parses the
// TES4 record directly and supports every game this package supports.
func DefaultHeaderReader() HeaderReader {
	return espmHeaderReader{parser: espm.NewParser()}
}

type espmHeaderReader struct {
	parser *espm.Parser
}

func (r espmHeaderReader) ParseHeader(rd io.Reader, game GameID) (Header, error) {
	h, err := r.parser.ParseHeader(rd, layoutFor(game))
	if err != nil {
		return Header{}, err
	}
	return Header{IsMaster: h.IsMaster, Masters: h.Masters}, nil
}

func layoutFor(game GameID) espm.HeaderLayout {
	switch game {
	case TES3:
		return espm.LayoutLegacy
	case TES4, FO3, FNV:
		return espm.LayoutOldGen
	default:
		return espm.LayoutModern
	}
}

// prober resolves a plugin name to its on-disk file, trying the bare name
// and then the name with a ".ghost" suffix appended, and reads its header
// through reader.
type prober struct {
	reader HeaderReader
}

func newProber(reader HeaderReader) *prober {
	if reader == nil {
		reader = DefaultHeaderReader()
	}
	return &prober{reader: reader}
}

// resolve returns the physical filename (possibly with a .ghost suffix) of
// canonical inside folder, and whether it was found ghosted.
func (p *prober) resolve(folder, canonical string) (physical string, ghosted bool, err error) {
	if _, err := os.Stat(filepath.Join(folder, canonical)); err == nil {
		return canonical, false, nil
	}
	ghostName := canonical + ".ghost"
	if _, err := os.Stat(filepath.Join(folder, ghostName)); err == nil {
		return ghostName, true, nil
	}
	return "", false, newError(CodeFileNotFound, "%s not found in %s", canonical, folder)
}

// header reads and parses the header of canonical inside folder, trying the
// ghosted path as a fallback.
func (p *prober) header(folder, canonical string, game GameID) (Header, string, bool, error) {
	physical, ghosted, err := p.resolve(folder, canonical)
	if err != nil {
		return Header{}, "", false, err
	}
	f, err := os.Open(filepath.Join(folder, physical))
	if err != nil {
		return Header{}, "", false, newError(CodeFileReadFail, "%s: %v", canonical, err)
	}
	defer f.Close()

	h, err := p.reader.ParseHeader(f, game)
	if err != nil {
		return Header{}, "", false, newError(CodeFileReadFail, "%s: %v", canonical, err)
	}
	return h, physical, ghosted, nil
}

// isValid reports whether canonical resolves to a file in folder whose
// header parses successfully.
func (p *prober) isValid(folder, canonical string, game GameID) bool {
	_, _, _, err := p.header(folder, canonical, game)
	return err == nil
}
