package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ScheduleEntry pairs a sequence number with its business-day offset
// from the initial send.
type ScheduleEntry struct {
	SequenceNumber int
	OffsetDays     int
}

// ParseSchedule parses a "seq:businessDays" comma list, e.g.
// "1:3,2:7,3:10,4:180". Malformed configuration is fatal at startup.
func ParseSchedule(raw string) ([]ScheduleEntry, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("schedule config: empty schedule")
	}

	seen := make(map[int]bool)
	var entries []ScheduleEntry
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		fields := strings.Split(part, ":")
		if len(fields) != 2 {
			return nil, fmt.Errorf("schedule config: malformed entry %q", part)
		}
		seq, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil || seq < 1 {
			return nil, fmt.Errorf("schedule config: invalid sequence number in %q", part)
		}
		days, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil || days < 0 {
			return nil, fmt.Errorf("schedule config: invalid business-day offset in %q", part)
		}
		if seen[seq] {
			return nil, fmt.Errorf("schedule config: duplicate sequence number %d", seq)
		}
		seen[seq] = true
		entries = append(entries, ScheduleEntry{SequenceNumber: seq, OffsetDays: days})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].SequenceNumber < entries[j].SequenceNumber
	})
	return entries, nil
}
