package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sftpbackup/internal/models"
	"time"

	"github.com/klauspost/compress/zip"
)

// ArchivePath is where the archive of a backup directory is written: next
// to it, with a .zip extension.
func ArchivePath(backupDir string) string {
	return filepath.Clean(backupDir) + ".zip"
}

// CreateArchive zips sourceDir into outputPath. Entries are stored under the
// directory's base name, and empty directories are kept. A failed archive is
// removed.
func CreateArchive(sourceDir, outputPath string) (info *models.ArchiveInfo, err error) {
	outFile, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}
	defer func() {
		outFile.Close()
		if err != nil {
			CleanupTempFile(outputPath)
		}
	}()

	createdAt := time.Now()
	zipWriter := zip.NewWriter(outFile)

	originalSize, err := addToArchive(zipWriter, sourceDir)
	if err != nil {
		zipWriter.Close()
		return nil, fmt.Errorf("failed to add %s to archive: %w", sourceDir, err)
	}

	if err := zipWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	fileInfo, err := outFile.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get archive info: %w", err)
	}
	compressedSize := fileInfo.Size()

	compressionRatio := 0.0
	if originalSize > 0 {
		compressionRatio = float64(compressedSize) / float64(originalSize)
	}

	return &models.ArchiveInfo{
		ArchivePath:      outputPath,
		SourcePath:       sourceDir,
		CompressedSize:   compressedSize,
		OriginalSize:     originalSize,
		CompressionRatio: compressionRatio,
		CreatedAt:        createdAt,
	}, nil
}

func addToArchive(zipWriter *zip.Writer, sourceDir string) (int64, error) {
	var size int64
	parent := filepath.Dir(filepath.Clean(sourceDir))

	err := filepath.Walk(sourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(parent, path)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(relPath)

		if info.IsDir() {
			header.Name += "/"
			header.Method = zip.Store
			_, err := zipWriter.CreateHeader(header)
			return err
		}

		header.Method = zip.Deflate

		writer, err := zipWriter.CreateHeader(header)
		if err != nil {
			return err
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		n, err := io.Copy(writer, file)
		size += n
		return err
	})

	return size, err
}

func CleanupTempFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to cleanup temporary file %s: %w", path, err)
	}
	return nil
}
