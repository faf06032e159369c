package partition

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/danthegoodman1/icemor/utils"
)

var (
	ErrNotDatePartition = errors.New("partition path does not encode a date")

	yearKeys  = []string{"y", "year"}
	monthKeys = []string{"m", "month"}
	dayKeys   = []string{"d", "day"}
)

// ParseDate reads the date a partition path encodes. Both positional
// (2023/01/31) and hive style (y=2023/m=01/d=31, year=2023/month=1/day=31)
// layouts are understood.
func ParseDate(partitionPath string) (t time.Time, err error) {
	segs := strings.Split(strings.Trim(partitionPath, "/"), "/")
	if len(segs) != 3 {
		err = fmt.Errorf("%w: %q", ErrNotDatePartition, partitionPath)
		return
	}

	var ymd [3]int
	keySets := [][]string{yearKeys, monthKeys, dayKeys}
	for i, seg := range segs {
		if k, v, found := strings.Cut(seg, "="); found {
			if !utils.ContainsString(keySets[i], k) {
				err = fmt.Errorf("%w: unexpected key %q in %q", ErrNotDatePartition, k, partitionPath)
				return
			}
			seg = v
		}
		ymd[i], err = strconv.Atoi(seg)
		if err != nil {
			err = fmt.Errorf("%w: %q", ErrNotDatePartition, partitionPath)
			return
		}
	}

	t = time.Date(ymd[0], time.Month(ymd[1]), ymd[2], 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out of range values, reject those instead
	if t.Year() != ymd[0] || int(t.Month()) != ymd[1] || t.Day() != ymd[2] {
		err = fmt.Errorf("%w: %q", ErrNotDatePartition, partitionPath)
	}
	return
}

// SortByDateDesc orders partitions newest first. Partitions that do not encode
// a date sort after the dated ones, by path.
func SortByDateDesc(partitions []string) {
	dates := make(map[string]time.Time, len(partitions))
	for _, p := range partitions {
		if t, err := ParseDate(p); err == nil {
			dates[p] = t
		}
	}
	sort.SliceStable(partitions, func(i, j int) bool {
		ti, iok := dates[partitions[i]]
		tj, jok := dates[partitions[j]]
		switch {
		case iok && jok:
			return ti.After(tj)
		case iok != jok:
			return iok
		default:
			return partitions[i] < partitions[j]
		}
	})
}
