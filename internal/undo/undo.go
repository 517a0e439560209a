// Package undo implements the §4.9 undo driver: it consumes the journal
// internal/commit wrote, deletes files the run created, reverses its
// renames, and restores its overwritten/deleted files from the blob store.
// Grounded on original_source/code/common/backup.cpp's
// SignetBackup::LoadBackup.
package undo

import (
	"fmt"
	"os"

	"github.com/SamWindell/signet/internal/commit"
)

// Driver reverses the last run recorded by Journal.
type Driver struct {
	Journal *commit.Journal
}

// New returns a Driver over j.
func New(j *commit.Journal) *Driver {
	return &Driver{Journal: j}
}

// Run reverses the journal. It reports applied=false, nil when there is
// nothing to undo — no run since the last undo or --clear-backup made any
// disk-changing decision (§4.8 step 2's lazy clear means no journal file
// was ever written). Individual restore/delete/move failures are collected
// as warnings rather than aborting the rest of the undo: §4.9 says exactly
// this for files_created ("errors logged, not fatal"), and the same
// tolerance is extended to moves and restores so one missing file doesn't
// block reversing everything else the run did.
//
// Undo is one-shot (§4.9): on success, the journal and blob store are
// left empty, so a second call to Run reports applied=false.
func (d *Driver) Run() (applied bool, warnings []string, err error) {
	db, hadBackup, err := d.Journal.ReadAndClearDatabase()
	if err != nil {
		return false, nil, err
	}

	if !hadBackup {
		return false, nil, nil
	}

	for _, path := range db.FilesCreated {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			warnings = append(warnings, fmt.Sprintf("could not delete %q: %v", path, err))
		}
	}

	for original, current := range db.FileMoves {
		if err := os.Rename(current, original); err != nil {
			warnings = append(warnings, fmt.Sprintf("could not move %q back to %q: %v", current, original, err))
		}
	}

	for hash, path := range db.Files {
		data, err := os.ReadFile(d.Journal.BlobPath(hash))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("could not restore %q: %v", path, err))
			continue
		}

		if err := os.WriteFile(path, data, 0o644); err != nil {
			warnings = append(warnings, fmt.Sprintf("could not restore %q: %v", path, err))
		}
	}

	if err := d.Journal.ClearBackup(); err != nil {
		return true, warnings, err
	}

	return true, warnings, nil
}
