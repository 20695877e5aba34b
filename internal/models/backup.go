package models

import "time"

type CopyStats struct {
	DirsCreated int   `json:"dirs_created"`
	FilesCopied int   `json:"files_copied"`
	BytesCopied int64 `json:"bytes_copied"`
}

type BackupResult struct {
	Server         string        `json:"server"`
	User           string        `json:"user"`
	RemoteDir      string        `json:"remote_dir"`
	Destination    string        `json:"destination"`
	Counted        Counts        `json:"counted"`
	DirsCreated    int           `json:"dirs_created"`
	FilesCopied    int           `json:"files_copied"`
	TotalSizeBytes int64         `json:"total_size_bytes"`
	TotalSizeHuman string        `json:"total_size_human"`
	StartedAt      time.Time     `json:"started_at"`
	BackupDuration string        `json:"backup_duration"`
	ArchivePath    string        `json:"archive_path,omitempty"`
	Upload         *UploadResult `json:"upload,omitempty"`
}
