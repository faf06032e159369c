package model

import (
	"fmt"
	"sort"

	"github.com/danthegoodman1/icemor/fsutils"
)

type (
	// FileGroupID identifies a file group within a table. It is comparable and safe to use as a map key.
	FileGroupID struct {
		PartitionPath string
		FileID        string
	}

	// DataFile is a base (columnar) file version of a file group
	DataFile struct {
		path       string
		fileID     string
		commitTime string
		size       int64
	}

	// LogFile is a delta log file appended to a file group since a base instant
	LogFile struct {
		path           string
		fileID         string
		baseCommitTime string
		version        int
		size           int64
	}

	// FileSlice is the latest base file of a file group (if any) and the log
	// files written against it, ordered by log version.
	FileSlice struct {
		ID          FileGroupID
		BaseInstant string
		BaseFile    *DataFile
		LogFiles    []LogFile
	}
)

func NewFileGroupID(partitionPath, fileID string) FileGroupID {
	return FileGroupID{PartitionPath: partitionPath, FileID: fileID}
}

func (id FileGroupID) String() string {
	return fmt.Sprintf("%s/%s", id.PartitionPath, id.FileID)
}

// NewDataFile parses file group identity and commit time out of the path
func NewDataFile(path string, size int64) (*DataFile, error) {
	fileID, err := fsutils.FileIDFromDataPath(path)
	if err != nil {
		return nil, fmt.Errorf("error in FileIDFromDataPath: %w", err)
	}
	commitTime, err := fsutils.CommitTimeFromDataPath(path)
	if err != nil {
		return nil, fmt.Errorf("error in CommitTimeFromDataPath: %w", err)
	}
	return &DataFile{path: path, fileID: fileID, commitTime: commitTime, size: size}, nil
}

func (d *DataFile) Path() string       { return d.path }
func (d *DataFile) FileID() string     { return d.fileID }
func (d *DataFile) CommitTime() string { return d.commitTime }
func (d *DataFile) Size() int64        { return d.size }

func NewLogFile(path string, size int64) (LogFile, error) {
	fileID, err := fsutils.FileIDFromLogPath(path)
	if err != nil {
		return LogFile{}, fmt.Errorf("error in FileIDFromLogPath: %w", err)
	}
	baseCommitTime, err := fsutils.BaseCommitTimeFromLogPath(path)
	if err != nil {
		return LogFile{}, fmt.Errorf("error in BaseCommitTimeFromLogPath: %w", err)
	}
	version, err := fsutils.LogVersionFromLogPath(path)
	if err != nil {
		return LogFile{}, fmt.Errorf("error in LogVersionFromLogPath: %w", err)
	}
	return LogFile{path: path, fileID: fileID, baseCommitTime: baseCommitTime, version: version, size: size}, nil
}

func (l LogFile) Path() string           { return l.path }
func (l LogFile) FileID() string         { return l.fileID }
func (l LogFile) BaseCommitTime() string { return l.baseCommitTime }
func (l LogFile) Version() int           { return l.version }
func (l LogFile) Size() int64            { return l.size }

// SortLogFiles orders log files by version, then by path so retried writes of one version stay stable
func SortLogFiles(logs []LogFile) {
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].version != logs[j].version {
			return logs[i].version < logs[j].version
		}
		return logs[i].path < logs[j].path
	})
}

// LogFilesSize is the total size in bytes of the slice's log files
func (fs *FileSlice) LogFilesSize() int64 {
	var total int64
	for _, l := range fs.LogFiles {
		total += l.size
	}
	return total
}

// BaseFileSize is 0 for a log-only slice
func (fs *FileSlice) BaseFileSize() int64 {
	if fs.BaseFile == nil {
		return 0
	}
	return fs.BaseFile.size
}
