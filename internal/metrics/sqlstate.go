package metrics

import "sort"

// SQLStateRow represents the aggregated failure count for one SQLSTATE code.
type SQLStateRow struct {
	Code  string
	Label string
	Count int
}

// Labels for the SQLSTATE codes a churn run plausibly produces. Codes not
// listed here fall back to their two-character class label.
var sqlstateLabels = map[string]string{
	"40001": "serialization failure",
	"40P01": "deadlock detected",
	"53300": "too many connections",
	"55P03": "lock not available",
	"57014": "query canceled",
	"57P01": "admin shutdown",
	"08006": "connection failure",
	"08003": "connection does not exist",
	"42P01": "undefined table",
}

var sqlstateClassLabels = map[string]string{
	"08": "connection exception",
	"22": "data exception",
	"23": "integrity constraint violation",
	"40": "transaction rollback",
	"42": "syntax error or access rule violation",
	"53": "insufficient resources",
	"54": "program limit exceeded",
	"57": "operator intervention",
	"58": "system error",
}

// SQLStateLabel returns a short description for a SQLSTATE code.
func SQLStateLabel(code string) string {
	if label, ok := sqlstateLabels[code]; ok {
		return label
	}
	if len(code) >= 2 {
		if label, ok := sqlstateClassLabels[code[:2]]; ok {
			return label
		}
	}
	return "server error"
}

// FlattenSQLStates converts a code->count map into sorted SQLStateRow rows.
// Rows are sorted by descending count, then by code for stability.
func FlattenSQLStates(states map[string]int) []SQLStateRow {
	if len(states) == 0 {
		return nil
	}
	rows := make([]SQLStateRow, 0, len(states))
	for code, count := range states {
		rows = append(rows, SQLStateRow{Code: code, Label: SQLStateLabel(code), Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Code < rows[j].Code
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
