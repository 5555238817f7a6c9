package normalize

import "strconv"

// inferColumnTypes infers a coarse type per column over string cells.
//
// A column is integer only if every non-nil value parses as int64, float only
// if every non-nil value parses as float64. Anything else, including a column
// with no values at all, is text. More specific types win.
func inferColumnTypes(ncols int, rows [][]any) []string {
	out := make([]string, ncols)
	for i := range out {
		out[i] = TypeText
	}

	for col := 0; col < ncols; col++ {
		var seen bool
		allInt := true
		allFloat := true

		for _, r := range rows {
			if col >= len(r) || r[col] == nil {
				continue
			}
			v, ok := r[col].(string)
			if !ok {
				allInt, allFloat = false, false
				break
			}
			seen = true

			if allInt {
				if _, err := strconv.ParseInt(v, 10, 64); err != nil {
					allInt = false
				}
			}
			if allFloat {
				if _, err := strconv.ParseFloat(v, 64); err != nil {
					allFloat = false
				}
			}
			if !allFloat {
				break
			}
		}

		if !seen {
			continue
		}
		switch {
		case allInt:
			out[col] = TypeInteger
		case allFloat:
			out[col] = TypeFloat
		}
	}

	return out
}

// coerceRows materializes numeric cells in place for columns inferred as
// integer or float. Inference already proved every non-nil cell coerces, so
// parse failures here cannot happen; values that somehow resist stay text.
func coerceRows(rows [][]any, types []string) {
	for col, typ := range types {
		if typ != TypeInteger && typ != TypeFloat {
			continue
		}
		for _, r := range rows {
			if col >= len(r) || r[col] == nil {
				continue
			}
			s, ok := r[col].(string)
			if !ok {
				continue
			}
			switch typ {
			case TypeInteger:
				if n, err := strconv.ParseInt(s, 10, 64); err == nil {
					r[col] = n
				}
			case TypeFloat:
				if f, err := strconv.ParseFloat(s, 64); err == nil {
					r[col] = f
				}
			}
		}
	}
}
