package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

const archiveSchema = "twinsnake_turn_v1"

// ArchiveTurnRow is one applied move of an archived match.
//
// Winner and Reason describe how the whole match ended and repeat on every
// row of that match. A match that ended before any move was applied is
// stored as a single row with Player -1.
type ArchiveTurnRow struct {
	GameID   string `parquet:"game_id,dict"`
	Turn     int32  `parquet:"turn"`
	Size     int32  `parquet:"size"`
	Mode     string `parquet:"mode,dict"`
	Player   int32  `parquet:"player"`
	Strategy string `parquet:"strategy,dict"`

	TargetRow int32 `parquet:"target_row"`
	TargetCol int32 `parquet:"target_col"`
	Heading   int32 `parquet:"heading"`

	// Mobility of each player once the move was applied.
	Mobility0 int32 `parquet:"mobility_0"`
	Mobility1 int32 `parquet:"mobility_1"`
	ElapsedUs int64 `parquet:"elapsed_us"`

	Winner int32  `parquet:"winner"`
	Reason string `parquet:"reason,dict"`
}

// WriteArchiveParquet writes rows to outPath through a temp file so readers
// never see a partial file.
func WriteArchiveParquet(outPath string, rows []ArchiveTurnRow) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", archiveSchema),
	); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

// WriteArchiveBatchAtomic writes rows into outDir/tmp and then moves the file
// into outDir. The returned path is the final file.
func WriteArchiveBatchAtomic(outDir string, rows []ArchiveTurnRow) (string, error) {
	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("batch_%d.parquet", time.Now().UnixNano())
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", archiveSchema),
	); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}
	return finalPath, nil
}

var ErrSchemaMismatch = errors.New("parquet file is not a twinsnake archive")

// ReadArchive loads every row of an archive file.
func ReadArchive(path string) ([]ArchiveTurnRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	if schema, ok := pf.Lookup("schema"); ok && schema != archiveSchema {
		return nil, fmt.Errorf("%s has schema %q: %w", path, schema, ErrSchemaMismatch)
	}

	r := parquet.NewGenericReader[ArchiveTurnRow](pf)
	defer r.Close()

	rows := make([]ArchiveTurnRow, 0, pf.NumRows())
	buf := make([]ArchiveTurnRow, 256)
	for {
		n, err := r.Read(buf)
		rows = append(rows, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read rows: %w", err)
		}
		if n == 0 {
			return rows, nil
		}
	}
}

// ReadArchiveDir loads every *.parquet file directly inside dir, in name
// order. Files in dir/tmp are still being written and are skipped.
func ReadArchiveDir(dir string) ([]ArchiveTurnRow, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	if err != nil {
		return nil, err
	}
	var all []ArchiveTurnRow
	for _, p := range paths {
		rows, err := ReadArchive(p)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}
	return all, nil
}
