package verdict

import (
	"strings"
	"unicode"
)

var requiredColumns = []string{"file name", "status", "comments"}

// StatusTable reads the first markdown table whose header names the
// File Name, Status and Comments columns. found is false when no such
// header exists. The table resolves only when it has at least one data
// row and every row reads "passed"; an unknown label keeps it open.
// Scanning ends at the first line after the header that is not a table row.
func StatusTable(text string) (v Verdict, rows int, found bool) {
	lines := strings.Split(text, "\n")

	statusCol := -1
	start := 0
	for i, line := range lines {
		if col, ok := headerStatusColumn(line); ok {
			statusCol = col
			start = i + 1
			break
		}
	}
	if statusCol < 0 {
		return KeepOpen, 0, false
	}

	allPassed := true
	for _, line := range lines[start:] {
		if !isTableRow(line) {
			break
		}
		cells := splitRow(line)
		if isSeparatorRow(cells) {
			continue
		}
		rows++
		cell := ""
		if statusCol < len(cells) {
			cell = cells[statusCol]
		}
		// "not passed", "questions" and unknown labels all keep the table open
		if normalizeStatusCell(cell) != "passed" {
			allPassed = false
		}
	}

	if rows == 0 || !allPassed {
		return KeepOpen, rows, true
	}
	return Resolve, rows, true
}

func headerStatusColumn(line string) (int, bool) {
	if !isTableRow(line) {
		return -1, false
	}
	cells := splitRow(line)
	index := map[string]int{}
	for i, c := range cells {
		index[strings.ToLower(stripBold(c))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := index[name]; !ok {
			return -1, false
		}
	}
	return index["status"], true
}

func isTableRow(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "|")
}

func splitRow(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	parts := strings.Split(line, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}
	return true
}

func stripBold(s string) string {
	return strings.TrimSpace(strings.NewReplacer("**", "", "__", "").Replace(s))
}

// normalizeStatusCell strips bold markers and any leading emoji, collapses
// whitespace and lower-cases the cell.
func normalizeStatusCell(cell string) string {
	cell = stripBold(cell)
	cell = strings.TrimLeftFunc(cell, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(strings.Fields(strings.ToLower(cell)), " ")
}
