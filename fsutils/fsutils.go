// Package fsutils holds the file naming convention for base (parquet) files and
// delta log files of a file group.
//
// Base files are named {fileId}_{writeToken}_{commitTime}.parquet.
// Log files are named .{fileId}_{baseCommitTime}.log.{version}, optionally
// followed by _{writeToken}. A log file names the base instant it extends, so a
// file group that has no base file yet can still be identified from its logs.
package fsutils

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/danthegoodman1/icemor/utils"
)

const (
	DataFileExtension = ".parquet"
	LogFileExtension  = ".log"

	// CompactionPlanExtension is appended to an instant to name its plan file
	CompactionPlanExtension = ".compaction.parquet"
)

var (
	ErrInvalidLogPath      = utils.PermError("invalid log file path")
	ErrInvalidDataFilePath = utils.PermError("invalid data file path")
	ErrUnsafePath          = utils.PermError("unsafe path")

	logFilePattern = regexp.MustCompile(`^\.(.+)_([^_.]+)\.(log)\.([0-9]+)(?:_([0-9]+-[0-9]+-[0-9]+))?$`)
	writeTokenRE   = regexp.MustCompile(`^[0-9]+-[0-9]+-[0-9]+$`)
	instantRE      = regexp.MustCompile(`^[0-9]+$`)
)

// Convention resolves file group identity from file paths. The zero value is ready to use.
type Convention struct{}

func (Convention) BaseCommitTimeFromLogPath(p string) (string, error) {
	return BaseCommitTimeFromLogPath(p)
}

func (Convention) FileIDFromLogPath(p string) (string, error) {
	return FileIDFromLogPath(p)
}

// MakeWriteToken builds the {taskPartition}-{stageId}-{attempt} token that
// disambiguates files written by retried tasks.
func MakeWriteToken(taskPartition, stageID, attempt int64) string {
	return fmt.Sprintf("%d-%d-%d", taskPartition, stageID, attempt)
}

func MakeDataFileName(commitTime, writeToken, fileID string) string {
	return fmt.Sprintf("%s_%s_%s%s", fileID, writeToken, commitTime, DataFileExtension)
}

// MakeLogFileName builds a log file name, writeToken may be empty.
func MakeLogFileName(fileID, baseCommitTime string, version int, writeToken string) string {
	name := fmt.Sprintf(".%s_%s%s.%d", fileID, baseCommitTime, LogFileExtension, version)
	if writeToken != "" {
		name += "_" + writeToken
	}
	return name
}

// MakePlanFileName is the file name of the compaction plan scheduled at instant
func MakePlanFileName(instant string) string {
	return instant + CompactionPlanExtension
}

// baseName strips directories and any scheme prefix such as s3://bucket/
func baseName(p string) string {
	return path.Base(strings.ReplaceAll(p, "\\", "/"))
}

type logParts struct {
	fileID, baseCommitTime, writeToken string
	version                            int
}

func parseLogPath(p string) (logParts, error) {
	m := logFilePattern.FindStringSubmatch(baseName(p))
	if m == nil {
		return logParts{}, fmt.Errorf("%w: %q", ErrInvalidLogPath, p)
	}
	v, err := strconv.Atoi(m[4])
	if err != nil {
		return logParts{}, fmt.Errorf("%w: bad version in %q", ErrInvalidLogPath, p)
	}
	return logParts{fileID: m[1], baseCommitTime: m[2], version: v, writeToken: m[5]}, nil
}

func IsLogFile(p string) bool {
	return logFilePattern.MatchString(baseName(p))
}

func FileIDFromLogPath(p string) (string, error) {
	lp, err := parseLogPath(p)
	if err != nil {
		return "", err
	}
	return lp.fileID, nil
}

func BaseCommitTimeFromLogPath(p string) (string, error) {
	lp, err := parseLogPath(p)
	if err != nil {
		return "", err
	}
	return lp.baseCommitTime, nil
}

func LogVersionFromLogPath(p string) (int, error) {
	lp, err := parseLogPath(p)
	if err != nil {
		return 0, err
	}
	return lp.version, nil
}

func WriteTokenFromLogPath(p string) (string, error) {
	lp, err := parseLogPath(p)
	if err != nil {
		return "", err
	}
	return lp.writeToken, nil
}

func splitDataName(p string) ([]string, error) {
	name := baseName(p)
	if !strings.HasSuffix(name, DataFileExtension) || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDataFilePath, p)
	}
	name = strings.TrimSuffix(name, DataFileExtension)
	// commit times and write tokens never contain underscores, file ids may,
	// so split from the right
	last := strings.LastIndex(name, "_")
	if last <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDataFilePath, p)
	}
	mid := strings.LastIndex(name[:last], "_")
	if mid <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDataFilePath, p)
	}
	parts := []string{name[:mid], name[mid+1 : last], name[last+1:]}
	if parts[2] == "" || !writeTokenRE.MatchString(parts[1]) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDataFilePath, p)
	}
	return parts, nil
}

func IsDataFile(p string) bool {
	_, err := splitDataName(p)
	return err == nil
}

func FileIDFromDataPath(p string) (string, error) {
	parts, err := splitDataName(p)
	if err != nil {
		return "", err
	}
	return parts[0], nil
}

func CommitTimeFromDataPath(p string) (string, error) {
	parts, err := splitDataName(p)
	if err != nil {
		return "", err
	}
	return parts[2], nil
}

// CheckTableName accepts a single non-empty path segment. Names starting with
// "." are reserved, plans live under .plans.
func CheckTableName(table string) error {
	if table == "" || strings.HasPrefix(table, ".") || strings.ContainsAny(table, "/\\") {
		return fmt.Errorf("%w: table %q", ErrUnsafePath, table)
	}
	return nil
}

// CheckPartitionPath accepts "" (the table root) or a relative slash separated
// path with no empty, "." or ".." segments.
func CheckPartitionPath(partition string) error {
	if partition == "" {
		return nil
	}
	if strings.Contains(partition, "\\") {
		return fmt.Errorf("%w: partition %q", ErrUnsafePath, partition)
	}
	for _, seg := range strings.Split(partition, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: partition %q", ErrUnsafePath, partition)
		}
	}
	return nil
}

// CheckInstant accepts instants made of digits only
func CheckInstant(instant string) error {
	if !instantRE.MatchString(instant) {
		return fmt.Errorf("%w: instant %q", ErrUnsafePath, instant)
	}
	return nil
}
