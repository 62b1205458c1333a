// Package safety prechecks content before it is stored: regex-based PII
// detection with per-class policy, and a malicious-content block list.
package safety

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/fikri/engram/internal/config"
)

// ErrContentBlocked wraps a precheck rejection. A blocked store is a policy
// outcome, not a fault.
var ErrContentBlocked = errors.New("content blocked by safety policy")

// PII detection classes
const (
	ClassEmail      = "email"
	ClassPhone      = "phone"
	ClassCreditCard = "credit_card"
	ClassSecret     = "secret"
)

// Detection is one matched class with its occurrence count
type Detection struct {
	Class string `json:"class"`
	Count int    `json:"count"`
}

// Result is the precheck outcome. When Blocked is false the caller stores
// Content, which may already be redacted.
type Result struct {
	Blocked     bool        `json:"blocked"`
	Reason      string      `json:"reason,omitempty"`
	Content     string      `json:"content"`
	Detections  []Detection `json:"detections,omitempty"`
	PIIDetected bool        `json:"pii_detected"`
	PIIRedacted bool        `json:"pii_redacted"`
}

type classPattern struct {
	class   string
	pattern *regexp.Regexp
	// verify filters matches that only look like the class; nil accepts all
	verify func(string) bool
}

// Checker applies the configured safety policy to incoming content
type Checker struct {
	cfg       config.SafetyConfig
	pii       []classPattern
	malicious []*regexp.Regexp
}

// New creates a checker with the default pattern set
func New(cfg config.SafetyConfig) *Checker {
	return &Checker{
		cfg: cfg,
		pii: []classPattern{
			{
				class:   ClassEmail,
				pattern: regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
			},
			{
				class:   ClassPhone,
				pattern: regexp.MustCompile(`\+?\d{1,3}[-. (]?\d{3}[-. )]?\d{3}[-. ]?\d{4}`),
			},
			{
				class:   ClassCreditCard,
				pattern: regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`),
				verify:  luhnValid,
			},
			{
				class: ClassSecret,
				pattern: regexp.MustCompile(
					`sk-[a-zA-Z0-9_-]{20,}|AKIA[0-9A-Z]{16}|Bearer\s+[a-zA-Z0-9._-]{20,}|(?i:password|secret)["\s:=]+\S+`),
			},
		},
		malicious: []*regexp.Regexp{
			regexp.MustCompile(`(?i)<script[\s>]`),
			regexp.MustCompile(`(?i)\beval\s*\(\s*base64`),
			regexp.MustCompile(`(?i)rm\s+-rf\s+/\S*`),
			regexp.MustCompile(`(?i)\b(drop|truncate)\s+table\b`),
			regexp.MustCompile(`(?i)ignore\s+(all\s+)?previous\s+instructions`),
		},
	}
}

// Check runs the precheck and applies the configured policy
func (c *Checker) Check(content string) Result {
	if c.cfg.BlockMalicious {
		for _, pattern := range c.malicious {
			if pattern.MatchString(content) {
				return Result{
					Blocked: true,
					Reason:  "content matches malicious pattern",
					Content: content,
				}
			}
		}
	}

	result := Result{Content: content}
	for _, cp := range c.pii {
		matches := cp.pattern.FindAllString(content, -1)
		count := 0
		for _, m := range matches {
			if cp.verify != nil && !cp.verify(m) {
				continue
			}
			count++
			if c.cfg.RedactPII && !c.cfg.BlockPII {
				result.Content = strings.Replace(result.Content, m,
					fmt.Sprintf("[REDACTED:%s]", cp.class), 1)
			}
		}
		if count > 0 {
			result.PIIDetected = true
			result.Detections = append(result.Detections, Detection{Class: cp.class, Count: count})
		}
	}

	if result.PIIDetected {
		if c.cfg.BlockPII {
			return Result{
				Blocked:     true,
				Reason:      "content contains PII: " + describeDetections(result.Detections),
				Content:     content,
				Detections:  result.Detections,
				PIIDetected: true,
			}
		}
		result.PIIRedacted = c.cfg.RedactPII
	}

	return result
}

func describeDetections(detections []Detection) string {
	parts := make([]string, len(detections))
	for i, d := range detections {
		parts[i] = fmt.Sprintf("%s(%d)", d.Class, d.Count)
	}
	return strings.Join(parts, ", ")
}

// luhnValid runs the checksum that separates card numbers from arbitrary
// digit runs.
func luhnValid(s string) bool {
	var digits []int
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
