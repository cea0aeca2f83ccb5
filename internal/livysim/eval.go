package livysim

import (
	"strconv"
	"strings"
)

// evalCode renders the text/plain output for one code fragment.
// Two-operand integer arithmetic evaluates; anything else echoes back.
func evalCode(code string) string {
	fields := strings.Fields(strings.TrimSpace(code))
	if len(fields) == 3 {
		a, errA := strconv.ParseInt(fields[0], 10, 64)
		b, errB := strconv.ParseInt(fields[2], 10, 64)
		if errA == nil && errB == nil {
			switch fields[1] {
			case "+":
				return strconv.FormatInt(a+b, 10)
			case "-":
				return strconv.FormatInt(a-b, 10)
			case "*":
				return strconv.FormatInt(a*b, 10)
			case "/":
				if b != 0 {
					return strconv.FormatInt(a/b, 10)
				}
			}
		}
	}
	return strings.TrimSpace(code)
}
