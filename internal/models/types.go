package models

type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
	Command   string `json:"command"`
}

// RemoteEntry is one item of a remote directory listing. Size is only
// meaningful for files.
type RemoteEntry struct {
	Name string
	Dir  bool
	Size int64
}

// Counts is the result of the counting pass. Dirs includes the root; Bytes
// is the listed size of all files.
type Counts struct {
	Dirs  int   `json:"dirs"`
	Files int   `json:"files"`
	Bytes int64 `json:"bytes"`
}

func (c Counts) Total() int {
	return c.Dirs + c.Files
}
