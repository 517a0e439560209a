package processor

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/SamWindell/signet/internal/fault"
	"github.com/SamWindell/signet/internal/file"
)

var folderiseGroupPattern = regexp.MustCompile(`<(\d+)>`)

// FolderiseOptions configures the Folderise processor.
type FolderiseOptions struct {
	Pattern        *regexp.Regexp
	FolderTemplate string
}

// Folderise moves each matching file into a folder named from a template
// referencing the match's regex groups (§4.5). Files whose name does not
// match Pattern are left untouched.
type Folderise struct {
	base
	Options FolderiseOptions
}

// NewFolderise returns a Folderise processor configured with opts.
func NewFolderise(opts FolderiseOptions) *Folderise {
	return &Folderise{
		base:    base{name: "folderise", allowsOutputFolder: false, allowsSingleOutputFile: false},
		Options: opts,
	}
}

// ProcessFiles implements FileProcessor.
func (fo *Folderise) ProcessFiles(c *file.Collection) []Warning {
	var warnings []Warning

	for _, f := range c.Files() {
		folder, err := fo.folderFor(f.Filename)
		if err != nil {
			f.AddWarning(err.Error())
			warnings = append(warnings, Warning{File: f.CurrentPath(), Message: err.Error()})

			continue
		}

		if folder == "" {
			continue
		}

		dir := filepath.Dir(f.CurrentPath())
		base := filepath.Base(f.CurrentPath())
		f.SetPath(filepath.Join(dir, folder, base))
	}

	return warnings
}

func (fo *Folderise) folderFor(filename string) (string, error) {
	if fo.Options.Pattern == nil {
		return "", nil
	}

	match := fo.Options.Pattern.FindStringSubmatch(filename)
	if match == nil {
		return "", nil
	}

	var tokenErr error

	folder := folderiseGroupPattern.ReplaceAllStringFunc(fo.Options.FolderTemplate, func(tok string) string {
		if tokenErr != nil {
			return tok
		}

		sub := folderiseGroupPattern.FindStringSubmatch(tok)

		idx, err := strconv.Atoi(sub[1])
		if err != nil || idx >= len(match) {
			tokenErr = fmt.Errorf("%w: folderise template references group %s, which %q did not capture",
				fault.ErrUnparseableToken, sub[1], filename)

			return tok
		}

		return match[idx]
	})

	if tokenErr != nil {
		return "", tokenErr
	}

	return folder, nil
}
