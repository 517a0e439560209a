// Package commit implements the §4.8 commit/backup engine: the per-file
// decision table that turns EditTrackedFile dirty bits into a minimal disk
// write, a journal recorded before every mutating syscall, and the atomic
// journal file itself. Grounded on
// original_source/code/common/backup.{h,cpp} (the SignetBackup class) and
// original_source/code/signet/audio_files.cpp's WriteFilesThatHaveBeenEdited
// decision table.
package commit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/SamWindell/signet/internal/fault"
)

// Database is the on-disk journal shape (§6's persisted state layout):
//
//	$TEMP/signet-backup/backup.json
//
// Files maps a path hash to the original path it was backed up from.
// FileMoves maps an original path to the path it was renamed to.
// FilesCreated lists paths that did not exist before this run.
type Database struct {
	Files        map[string]string `json:"files"`
	FileMoves    map[string]string `json:"file_moves"`
	FilesCreated []string          `json:"files_created"`
}

func newDatabase() Database {
	return Database{Files: map[string]string{}, FileMoves: map[string]string{}}
}

// Journal is Signet's backup/undo store, rooted at baseDir
// ($TEMP/signet-backup by default, §6). It journals every side effect of a
// commit run before performing it, so a failed run can be reversed by
// internal/undo, and it satisfies processor.Journal for generator
// processors that create files directly.
type Journal struct {
	baseDir      string
	filesDir     string
	databaseFile string

	db      Database
	cleared bool // latches ClearOldBackIfNeeded: true once this run has cleared stale state
	lastErr error
}

// New returns a Journal rooted at the platform temp directory, matching
// §6's persisted state layout.
func New() *Journal {
	return NewAt(filepath.Join(os.TempDir(), "signet-backup"))
}

// NewAt returns a Journal rooted at baseDir, for callers (tests, or a
// future --backup-dir flag) that want an isolated directory rather than
// the shared platform temp dir.
func NewAt(baseDir string) *Journal {
	return &Journal{
		baseDir:      baseDir,
		filesDir:     filepath.Join(baseDir, "files"),
		databaseFile: filepath.Join(baseDir, "backup.json"),
		db:           newDatabase(),
	}
}

// BlobPath returns the path a backed-up copy of the file hashed to hash
// would be stored at. internal/undo uses this to restore it.
func (j *Journal) BlobPath(hash string) string {
	return filepath.Join(j.filesDir, hash)
}

// ClearBackup empties the blob store and deletes the journal file,
// unconditionally. This backs both the lazy per-run clear (§4.8 step 2)
// and the CLI's explicit --clear-backup flag.
func (j *Journal) ClearBackup() error {
	if err := os.RemoveAll(j.filesDir); err != nil {
		return fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
	}

	if err := os.MkdirAll(j.filesDir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
	}

	if err := os.Remove(j.databaseFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
	}

	j.db = newDatabase()
	j.cleared = true

	return nil
}

// clearIfNeeded clears stale backup state exactly once per Journal
// lifetime (§4.8 step 2: "clear the prior journal ... exactly once; lazy —
// skipped if this run makes no disk-changing decision").
func (j *Journal) clearIfNeeded() error {
	if j.cleared {
		return nil
	}

	return j.ClearBackup()
}

// ReadAndClearDatabase atomically consumes the journal file: rename it to
// a temporary name, parse it, delete the temporary file. It reports
// hadBackup=false, with no error, both when no journal file exists and
// when one exists but is empty in all three fields (backup.cpp: "fails
// with a warning if files/file_moves/files_created are all empty").
func (j *Journal) ReadAndClearDatabase() (db Database, hadBackup bool, err error) {
	tmp := filepath.Join(j.baseDir, "backup.json."+randomAlnum(10)+".rtmp")

	if err := os.Rename(j.databaseFile, tmp); err != nil {
		if os.IsNotExist(err) {
			return Database{}, false, nil
		}

		return Database{}, false, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}
	defer os.Remove(tmp)

	data, err := os.ReadFile(tmp)
	if err != nil {
		return Database{}, false, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	if err := json.Unmarshal(data, &db); err != nil {
		return Database{}, false, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	if len(db.Files) == 0 && len(db.FileMoves) == 0 && len(db.FilesCreated) == 0 {
		return Database{}, false, nil
	}

	return db, true, nil
}

func (j *Journal) writeDatabaseFile() error {
	data, err := json.MarshalIndent(j.db, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
	}

	if err := atomicWriteFile(j.databaseFile, data, 0o644); err != nil {
		return fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
	}

	return nil
}

// AddFileToBackup copies path's current on-disk content into the blob
// store under a hash of its path, and records the mapping so undo can
// restore it. Called before any overwrite or delete of an existing file.
func (j *Journal) AddFileToBackup(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	hash := hashPath(path)

	if err := os.MkdirAll(j.filesDir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
	}

	if err := os.WriteFile(j.BlobPath(hash), data, 0o644); err != nil {
		return fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
	}

	j.db.Files[hash] = path

	return j.writeDatabaseFile()
}

// AddMovedFileToBackup records that from was renamed to to.
func (j *Journal) AddMovedFileToBackup(from, to string) error {
	j.db.FileMoves[from] = to
	return j.writeDatabaseFile()
}

// AddNewlyCreatedFileToBackup records that path did not exist before this
// run, so undo can simply delete it.
func (j *Journal) AddNewlyCreatedFileToBackup(path string) error {
	j.db.FilesCreated = append(j.db.FilesCreated, path)
	return j.writeDatabaseFile()
}

// RecordGenerated satisfies processor.Journal: a generator processor (e.g.
// sample-blend) calls this once it has written a brand-new file to path.
// Any failure is retained and surfaced via Err, since the interface this
// method implements cannot return one directly.
func (j *Journal) RecordGenerated(path string) {
	if err := j.clearIfNeeded(); err != nil {
		j.lastErr = err
		return
	}

	if err := j.AddNewlyCreatedFileToBackup(path); err != nil {
		j.lastErr = err
	}
}

// Err returns the most recent error recorded by RecordGenerated, if any.
func (j *Journal) Err() error {
	return j.lastErr
}

// DeleteFile backs up path, then removes it from disk.
func (j *Journal) DeleteFile(path string) error {
	if err := j.clearIfNeeded(); err != nil {
		return err
	}

	if err := j.AddFileToBackup(path); err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
	}

	return nil
}

// MoveFile journals the move, then renames from to to on disk. If the
// rename fails, it removes the move from the journal again before
// returning the error.
func (j *Journal) MoveFile(from, to string) error {
	if err := j.clearIfNeeded(); err != nil {
		return err
	}

	if from == to {
		return nil
	}

	if _, err := os.Stat(to); err == nil {
		return fmt.Errorf("%w: %q already exists", fault.ErrWriteConflict, to)
	}

	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
	}

	if err := j.AddMovedFileToBackup(from, to); err != nil {
		return err
	}

	if err := os.Rename(from, to); err != nil {
		delete(j.db.FileMoves, from)
		_ = j.writeDatabaseFile() // best-effort: drop the entry for a move that did not happen

		return fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
	}

	return nil
}

// CreateFile journals path as newly created, then writes data to it. If
// path already exists, it falls back to
// OverwriteFile (backup.cpp: "if the file already exists on disk delegates
// to OverwriteFile").
func (j *Journal) CreateFile(path string, data []byte) error {
	if err := j.clearIfNeeded(); err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		return j.OverwriteFile(path, data)
	}

	if err := j.AddNewlyCreatedFileToBackup(path); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
	}

	return nil
}

// OverwriteFile backs up path's existing content, then writes data over it.
func (j *Journal) OverwriteFile(path string, data []byte) error {
	if err := j.clearIfNeeded(); err != nil {
		return err
	}

	if err := j.AddFileToBackup(path); err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
	}

	return nil
}

func hashPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	sum := sha256.Sum256([]byte(abs))

	return hex.EncodeToString(sum[:])
}

const alnum = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomAlnum(n int) string {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	b := make([]byte, n)
	for i := range b {
		b[i] = alnum[r.Intn(len(alnum))]
	}

	return string(b)
}

// atomicWriteFile writes data to a randomly-named temp file beside path,
// then renames it over path (§6: "Temp file for atomic replace:
// backup.json.<10 random alnum>.tmp").
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := filepath.Join(dir, filepath.Base(path)+"."+randomAlnum(10)+".tmp")

	if err := os.WriteFile(tmp, data, perm); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}

	return nil
}
