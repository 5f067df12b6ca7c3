// Package snapshot persists index Models as self-contained .prsx files. A
// snapshot is written to a temp file and renamed into place, so a reader can
// never observe a partial write; the payload checksum catches truncation and
// corruption after the fact. Each rebuild produces a new snapshot file, and
// readers always load the newest complete one.
package snapshot

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/arvind-menon/passage-retrieval-platform/internal/engine/model"
	apperrors "github.com/arvind-menon/passage-retrieval-platform/pkg/errors"
)

// Magic identifies a valid .prsx snapshot file.
const (
	Magic         uint32 = 0x50525358
	FormatVersion uint32 = 1
	headerSize    int    = 32
)

// FileExt is the snapshot file suffix.
const FileExt = ".prsx"

// header layout, little-endian:
//
//	[0:4]   magic
//	[4:8]   format version
//	[8:12]  model schema version
//	[12:16] payload crc32 (IEEE)
//	[16:24] payload size in bytes
//	[24:32] created-at unix seconds

// Write serialises m into dir as a new snapshot file and returns its name.
// The file is fsynced and renamed from a .tmp path, so concurrent readers
// either see the previous snapshot or the complete new one.
func Write(dir string, m *model.Model) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating snapshot directory: %w", err)
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshaling model: %w", err)
	}

	name := fmt.Sprintf("model_%d%s", time.Now().UnixNano(), FileExt)
	finalPath := filepath.Join(dir, name)
	tmpPath := finalPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp snapshot file: %w", err)
	}
	fail := func(stage string, err error) (string, error) {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("%s: %w", stage, err)
	}

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], Magic)
	binary.LittleEndian.PutUint32(header[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(m.Version))
	binary.LittleEndian.PutUint32(header[12:16], crc32.ChecksumIEEE(payload))
	binary.LittleEndian.PutUint64(header[16:24], uint64(len(payload)))
	binary.LittleEndian.PutUint64(header[24:32], uint64(time.Now().Unix()))

	if _, err := f.Write(header); err != nil {
		return fail("writing snapshot header", err)
	}
	if _, err := f.Write(payload); err != nil {
		return fail("writing snapshot payload", err)
	}
	if err := f.Sync(); err != nil {
		return fail("syncing snapshot file", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming snapshot file: %w", err)
	}
	return name, nil
}

// Read loads and verifies the snapshot at path. Corrupt, truncated, or
// schema-incompatible files return ErrSnapshotCorrupt so the caller can fall
// back to an empty model.
func Read(path string) (*model.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}
	if len(data) < headerSize {
		return nil, apperrors.Newf(apperrors.ErrSnapshotCorrupt, 500,
			"snapshot %s truncated: %d bytes", filepath.Base(path), len(data))
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != Magic {
		return nil, apperrors.Newf(apperrors.ErrSnapshotCorrupt, 500,
			"snapshot %s: bad magic %x", filepath.Base(path), magic)
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != FormatVersion {
		return nil, apperrors.Newf(apperrors.ErrSnapshotCorrupt, 500,
			"snapshot %s: unsupported format version %d", filepath.Base(path), v)
	}
	if sv := binary.LittleEndian.Uint32(data[8:12]); sv != model.SchemaVersion {
		return nil, apperrors.Newf(apperrors.ErrSnapshotCorrupt, 500,
			"snapshot %s: model schema version %d, want %d",
			filepath.Base(path), sv, model.SchemaVersion)
	}
	size := binary.LittleEndian.Uint64(data[16:24])
	payload := data[headerSize:]
	if uint64(len(payload)) != size {
		return nil, apperrors.Newf(apperrors.ErrSnapshotCorrupt, 500,
			"snapshot %s: payload size %d, header says %d",
			filepath.Base(path), len(payload), size)
	}
	if sum := crc32.ChecksumIEEE(payload); sum != binary.LittleEndian.Uint32(data[12:16]) {
		return nil, apperrors.Newf(apperrors.ErrSnapshotCorrupt, 500,
			"snapshot %s: checksum mismatch", filepath.Base(path))
	}

	var m model.Model
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, apperrors.Newf(apperrors.ErrSnapshotCorrupt, 500,
			"snapshot %s: %v", filepath.Base(path), err)
	}
	if m.Stats.DocFreq == nil {
		m.Stats.DocFreq = make(map[string]int)
	}
	return &m, nil
}

// Latest returns the path of the newest snapshot file in dir, or "" when the
// directory holds none.
func Latest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading snapshot directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), FileExt) {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return "", nil
	}
	// Names embed a nanosecond timestamp of equal width, so the
	// lexicographically greatest name is the newest snapshot.
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}

// Prune removes all snapshot files in dir except the keep newest ones.
func Prune(dir string, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading snapshot directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), FileExt) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	removed := 0
	for i := 0; i < len(names)-keep; i++ {
		if err := os.Remove(filepath.Join(dir, names[i])); err != nil {
			return removed, fmt.Errorf("removing old snapshot %s: %w", names[i], err)
		}
		removed++
	}
	return removed, nil
}
