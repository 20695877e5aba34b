package models

import "time"

type ArchiveInfo struct {
	ArchivePath      string    `json:"archive_path"`
	SourcePath       string    `json:"source_path"`
	CompressedSize   int64     `json:"compressed_size"`
	OriginalSize     int64     `json:"original_size"`
	CompressionRatio float64   `json:"compression_ratio"`
	CreatedAt        time.Time `json:"created_at"`
}

type UploadResult struct {
	BucketName     string `json:"bucket_name"`
	RemotePath     string `json:"remote_path"`
	SizeBytes      int64  `json:"size_bytes"`
	SizeHuman      string `json:"size_human"`
	UploadDuration string `json:"upload_duration"`
}
