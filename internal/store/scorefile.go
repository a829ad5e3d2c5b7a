package store

import (
	"os"

	"github.com/go-while/go-pan/internal/errkind"
	"github.com/go-while/go-pan/internal/scorefile"
)

// SaveScore writes the Score file via the atomic protocol (spec.md
// §4.9): append-only semantics are enforced by scorefile.Scorefile
// itself (§4.3), this layer only finalizes the write.
func SaveScore(dir Dir, sf *scorefile.Scorefile) error {
	return WriteFile(dir.ScorePath(), func(sink *Sink) error {
		return sf.Write(sink)
	})
}

// LoadScore reads the Score file. A missing file yields a fresh, empty
// scorefile and is not an error.
func LoadScore(dir Dir) (*scorefile.Scorefile, error) {
	f, err := os.Open(dir.ScorePath())
	if os.IsNotExist(err) {
		return scorefile.New(), nil
	}
	if err != nil {
		return nil, errkind.New(errkind.IO, err)
	}
	defer f.Close()
	return scorefile.Parse(f)
}
