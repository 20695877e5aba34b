package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"sftpbackup/internal/models"
	"time"

	"github.com/sirupsen/logrus"
)

func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func PrintJSON(w io.Writer, data interface{}) error {
	jsonOutput, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(jsonOutput))
	return err
}

// PrintError writes err as an ErrorResponse. Commands send it to stderr so
// stdout carries only progress output.
func PrintError(w io.Writer, err error, command string) {
	errorResp := models.ErrorResponse{
		Error:     err.Error(),
		Timestamp: FormatTime(time.Now()),
		Command:   command,
	}
	if err := PrintJSON(w, errorResp); err != nil {
		logrus.WithError(err).Error("Failed to print error in JSON format")
		fmt.Fprintln(w, "Error:", errorResp.Error)
	}
}

func FormatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}
