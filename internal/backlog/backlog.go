package backlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// Item is one row of backlog.csv: a tracked piece of project work mirrored
// to a GitHub issue.
type Item struct {
	ID     string
	Title  string
	Body   string
	Labels []string
	Status string // "open" or "closed"
}

var header = []string{"id", "title", "body", "labels", "status"}

// titlePrefix tags mirrored issues so sync can find them again.
func (i Item) titlePrefix() string { return "[BL-" + i.ID + "]" }

// IssueTitle is the title the mirrored GitHub issue carries.
func (i Item) IssueTitle() string { return i.titlePrefix() + " " + i.Title }

// Read loads backlog.csv. Labels are separated with ";" inside the cell.
func Read(path string) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open backlog: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read backlog: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	if !equalHeader(records[0]) {
		return nil, fmt.Errorf("backlog header %v, expected %v", records[0], header)
	}

	var items []Item
	seen := make(map[string]bool)
	for n, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("backlog row %d: %d columns, expected %d", n+2, len(rec), len(header))
		}
		item := Item{
			ID:     strings.TrimSpace(rec[0]),
			Title:  strings.TrimSpace(rec[1]),
			Body:   rec[2],
			Status: strings.ToLower(strings.TrimSpace(rec[4])),
		}
		for _, l := range strings.Split(rec[3], ";") {
			if l = strings.TrimSpace(l); l != "" {
				item.Labels = append(item.Labels, l)
			}
		}
		if item.ID == "" || item.Title == "" {
			return nil, fmt.Errorf("backlog row %d: id and title are required", n+2)
		}
		if seen[item.ID] {
			return nil, fmt.Errorf("backlog row %d: duplicate id %q", n+2, item.ID)
		}
		seen[item.ID] = true
		if item.Status == "" {
			item.Status = "open"
		}
		if item.Status != "open" && item.Status != "closed" {
			return nil, fmt.Errorf("backlog row %d: status %q", n+2, rec[4])
		}
		items = append(items, item)
	}
	return items, nil
}

func equalHeader(rec []string) bool {
	if len(rec) != len(header) {
		return false
	}
	for i, h := range header {
		if strings.TrimSpace(rec[i]) != h {
			return false
		}
	}
	return true
}
