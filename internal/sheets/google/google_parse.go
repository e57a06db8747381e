package google

import (
	"fmt"
	"strconv"
	"strings"
)

// toRows converts a values matrix (as returned by Sheets API) into trimmed
// strings. Numbers arrive as float64 when unformatted values are requested.
func toRows(values [][]interface{}) [][]string {
	rows := make([][]string, 0, len(values))
	for _, v := range values {
		rows = append(rows, toStrings(v))
	}
	return rows
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(cellString(v))
	}
	return out
}

func cellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
