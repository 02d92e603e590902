package domain

import (
	"strconv"
	"strings"
	"time"
)

// Bug statuses as the service labels them
const (
	BugStatusActive   = "激活"
	BugStatusResolved = "已解决"
	BugStatusClosed   = "已关闭"
)

// BugStatuses lists the statuses a query may filter on.
var BugStatuses = []string{BugStatusActive, BugStatusResolved, BugStatusClosed}

// SeverityLabels maps severity levels 1-4 to their labels.
var SeverityLabels = map[int]string{
	1: "1-严重",
	2: "2-主要",
	3: "3-次要",
	4: "4-建议",
}

// BugRecord is one row of the bug list
type BugRecord struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	Severity   string `json:"severity"`
	OpenedBy   string `json:"opened_by"`
	OpenedDate string `json:"opened_date"`
	AssignedTo string `json:"assigned_to"`
}

// SeverityLevel parses the leading digit of Severity, 0 when absent
func (b BugRecord) SeverityLevel() int {
	s := strings.TrimSpace(b.Severity)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s[:1])
	if err != nil {
		return 0
	}
	return n
}

// OpenedDay returns the yyyy-mm-dd part of OpenedDate
func (b BugRecord) OpenedDay() string {
	d := strings.TrimSpace(b.OpenedDate)
	if len(d) > 10 {
		return d[:10]
	}
	return d
}

// BugQueryInfo describes a finished bug query for the summary sheet of an
// export.
type BugQueryInfo struct {
	QueriedAt time.Time
	Operator  string
	Product   string
	Status    string
	Severity  string
	From      string
	To        string
	Count     int
}
