package strength

import (
	"unicode"
)

// Label represents a qualitative password strength tier.
// Tiers are ordered: Weak < Fair < Good < Strong < VeryStrong.
type Label int

const (
	Weak Label = iota
	Fair
	Good
	Strong
	VeryStrong
)

// String returns a human-readable representation of the strength label.
func (l Label) String() string {
	switch l {
	case Weak:
		return "weak"
	case Fair:
		return "fair"
	case Good:
		return "good"
	case Strong:
		return "strong"
	case VeryStrong:
		return "very-strong"
	default:
		return "unknown"
	}
}

// Result holds the computed strength of a candidate password.
// It is derived on every evaluation and never persisted.
type Result struct {
	Score    int      `json:"score"`
	Label    Label    `json:"label"`
	Feedback []string `json:"feedback,omitempty"`
}

const (
	maxScore = 100

	// Each character contributes to the base score up to this cap,
	// so very long passwords cannot ride on length alone.
	lengthPointsPerChar = 4
	lengthPointsCap     = 40

	classBonus = 10

	distinctPointsPerChar = 2
	distinctPointsCap     = 20

	sequentialRunPenalty = 3
	repeatedRunPenalty   = 4
)

// Score thresholds for each label, ascending. A score maps to the highest
// tier whose threshold it reaches.
var labelThresholds = []struct {
	min   int
	label Label
}{
	{0, Weak},
	{25, Fair},
	{45, Good},
	{70, Strong},
	{90, VeryStrong},
}

// Evaluate scores a candidate password on a 0-100 scale and assigns a
// qualitative label. It is pure and deterministic: the same input always
// yields the same result, and an empty password scores 0 with label Weak.
func Evaluate(password string) Result {
	if password == "" {
		return Result{
			Score:    0,
			Label:    Weak,
			Feedback: []string{"Enter a password to see its strength"},
		}
	}

	runes := []rune(password)

	score := lengthPoints(len(runes))

	hasLower, hasUpper, hasDigit, hasSymbol := characterClasses(runes)
	classes := 0
	for _, present := range []bool{hasLower, hasUpper, hasDigit, hasSymbol} {
		if present {
			classes++
		}
	}
	score += classes * classBonus

	score += distinctPoints(runes)

	seqRuns := sequentialRuns(runes)
	repRuns := repeatedRuns(runes)
	score -= seqRuns * sequentialRunPenalty
	score -= repRuns * repeatedRunPenalty

	if score < 0 {
		score = 0
	}
	if score > maxScore {
		score = maxScore
	}

	result := Result{Score: score, Label: labelFor(score)}

	if len(runes) < 12 {
		result.Feedback = append(result.Feedback, "Use 12 or more characters")
	}
	if classes < 3 {
		result.Feedback = append(result.Feedback, "Mix uppercase, lowercase, numbers and symbols")
	}
	if seqRuns > 0 {
		result.Feedback = append(result.Feedback, "Avoid sequences like 'abc' or '123'")
	}
	if repRuns > 0 {
		result.Feedback = append(result.Feedback, "Avoid repeating the same character")
	}

	return result
}

func lengthPoints(length int) int {
	points := length * lengthPointsPerChar
	if points > lengthPointsCap {
		return lengthPointsCap
	}
	return points
}

func characterClasses(runes []rune) (lower, upper, digit, symbol bool) {
	for _, r := range runes {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	return lower, upper, digit, symbol
}

func distinctPoints(runes []rune) int {
	seen := make(map[rune]bool, len(runes))
	for _, r := range runes {
		seen[r] = true
	}
	points := len(seen) * distinctPointsPerChar
	if points > distinctPointsCap {
		return distinctPointsCap
	}
	return points
}

// sequentialRuns counts characters that continue an ascending or descending
// alphabet/digit run of length 3 or more. "abcd" contributes 2 (c and d),
// "19xw" contributes 0.
func sequentialRuns(runes []rune) int {
	if len(runes) < 3 {
		return 0
	}

	penalized := 0
	run := 1
	dir := 0
	for i := 1; i < len(runes); i++ {
		diff := int(runes[i]) - int(runes[i-1])
		if (diff == 1 || diff == -1) && isSequenceable(runes[i]) && isSequenceable(runes[i-1]) {
			if dir == diff {
				run++
			} else {
				run = 2
				dir = diff
			}
		} else {
			run = 1
			dir = 0
		}
		if run >= 3 {
			penalized++
		}
	}
	return penalized
}

func isSequenceable(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// repeatedRuns counts characters extending a run of 3+ identical characters.
// "aaab" contributes 1, "aaaa" contributes 2.
func repeatedRuns(runes []rune) int {
	if len(runes) < 3 {
		return 0
	}

	penalized := 0
	run := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			run++
		} else {
			run = 1
		}
		if run >= 3 {
			penalized++
		}
	}
	return penalized
}

func labelFor(score int) Label {
	label := Weak
	for _, t := range labelThresholds {
		if score >= t.min {
			label = t.label
		}
	}
	return label
}
