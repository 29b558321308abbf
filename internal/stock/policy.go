package stock

import (
	"fmt"
	"strings"
)

var valid = Result{Valid: true}

// CheckLine decides whether a single line would overdraw the available stock.
// Lines lacking the quantities needed for a decision pass.
func CheckLine(line Line) Result {
	switch line.Direction {
	case Outbound:
		if !line.Proposed.Set || !line.Available.Set {
			return valid
		}
		deficit := line.Proposed.Value.Sub(line.Available.Value)
		if deficit.IsPositive() {
			return Result{Message: availabilityMessage("Insufficient stock!", line)}
		}
		return valid
	case AdjustDown:
		if !line.Counted.Set || !line.System.Set || !line.Available.Set {
			return valid
		}
		difference := line.Counted.Value.Sub(line.System.Value)
		if difference.IsNegative() && difference.Abs().GreaterThan(line.Available.Value) {
			head := fmt.Sprintf("Cannot decrease stock by %s!", difference.Abs().String())
			return Result{Message: availabilityMessage(head, line)}
		}
		return valid
	default:
		return valid
	}
}

// CheckForm checks every line on its own. Lines never see each other, so two
// lines drawing on the same product are each compared with the full total.
func CheckForm(lines []Line) map[int]Result {
	out := make(map[int]Result, len(lines))
	for i, line := range lines {
		out[i] = CheckLine(line)
	}
	return out
}

// Summarize folds line results into a form result.
func Summarize(results map[int]Result) FormResult {
	form := FormResult{Valid: true}
	for i, r := range results {
		if r.Valid {
			continue
		}
		form.Valid = false
		if form.Errors == nil {
			form.Errors = make(map[int]string)
		}
		form.Errors[i] = r.Message
	}
	return form
}

// Check runs CheckForm and Summarize in one step.
func Check(lines []Line) FormResult {
	return Summarize(CheckForm(lines))
}

// availabilityMessage prints the exact available quantity so it can be
// compared with the rejected amount.
func availabilityMessage(head string, line Line) string {
	return strings.TrimSpace(fmt.Sprintf("%s Available: %s %s", head, line.Available.Value.String(), line.Unit))
}
