// Package doctor runs diagnostic checks against a gorgon setup: the config
// file, SSH prerequisites, every remote host and one trial poll per crab.
package doctor

import (
	"context"
	"fmt"
	"time"

	"github.com/rileyhilliard/gorgon/internal/util"
)

// DefaultTimeout bounds a single check.
const DefaultTimeout = 10 * time.Second

// Categories in report order.
const (
	CategoryConfig = "CONFIG"
	CategorySSH    = "SSH"
	CategoryHosts  = "HOSTS"
	CategoryCrabs  = "CRABS"
)

// CategoryOrder is the order categories are reported in.
var CategoryOrder = []string{CategoryConfig, CategorySSH, CategoryHosts, CategoryCrabs}

// CheckStatus represents the result status of a check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

// String returns a human-readable status string.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// MarshalText renders the status name in JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name written by MarshalText.
func (s *CheckStatus) UnmarshalText(text []byte) error {
	for _, st := range []CheckStatus{StatusPass, StatusWarn, StatusFail} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown check status %q", text)
}

// CheckResult contains the outcome of running a check.
type CheckResult struct {
	Name       string      `json:"name"`
	Category   string      `json:"category"`
	Status     CheckStatus `json:"status"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
}

// Check is one diagnostic.
type Check interface {
	Name() string
	// Category is one of the Category* constants.
	Category() string
	Run(ctx context.Context) CheckResult
}

// RunAll runs checks in order, each bounded by timeout (DefaultTimeout when
// not positive). Name and Category are filled in from the check.
func RunAll(ctx context.Context, checks []Check, timeout time.Duration) []CheckResult {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	results := make([]CheckResult, len(checks))
	for i, check := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		r := check.Run(checkCtx)
		cancel()

		r.Name = check.Name()
		r.Category = check.Category()
		results[i] = r
	}
	return results
}

// GroupByCategory returns the results of each category in CategoryOrder,
// skipping empty categories. Unknown categories go last.
func GroupByCategory(results []CheckResult) [][]CheckResult {
	byCat := make(map[string][]CheckResult)
	var extra []string
	for _, r := range results {
		if _, seen := byCat[r.Category]; !seen && !known(r.Category) {
			extra = append(extra, r.Category)
		}
		byCat[r.Category] = append(byCat[r.Category], r)
	}

	var groups [][]CheckResult
	for _, cat := range append(append([]string(nil), CategoryOrder...), extra...) {
		if len(byCat[cat]) > 0 {
			groups = append(groups, byCat[cat])
		}
	}
	return groups
}

func known(cat string) bool {
	for _, c := range CategoryOrder {
		if c == cat {
			return true
		}
	}
	return false
}

// CountByStatus counts results by status.
func CountByStatus(results []CheckResult) map[CheckStatus]int {
	counts := make(map[CheckStatus]int)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}

// HasFailures returns true if any result has a fail status.
func HasFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.Status == StatusFail {
			return true
		}
	}
	return false
}

// HasIssues returns true if any result has a fail or warn status.
func HasIssues(results []CheckResult) bool {
	for _, r := range results {
		if r.Status == StatusFail || r.Status == StatusWarn {
			return true
		}
	}
	return false
}

// Summary returns a summary string of the check results.
func Summary(results []CheckResult) string {
	counts := CountByStatus(results)
	total := counts[StatusWarn] + counts[StatusFail]
	if total == 0 {
		return "Everything looks good"
	}
	return fmt.Sprintf("%d %s found", total, util.Pluralize(total, "issue", "issues"))
}

// pass, warn and fail build results; RunAll fills in the name.
func pass(format string, args ...interface{}) CheckResult {
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf(format, args...)}
}

func warn(suggestion, format string, args ...interface{}) CheckResult {
	return CheckResult{Status: StatusWarn, Message: fmt.Sprintf(format, args...), Suggestion: suggestion}
}

func fail(suggestion, format string, args ...interface{}) CheckResult {
	return CheckResult{Status: StatusFail, Message: fmt.Sprintf(format, args...), Suggestion: suggestion}
}
