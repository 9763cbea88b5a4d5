package installer

// Outcome classifies how one package task ended.
type Outcome string

const (
	// OutcomeInstalled means the tarball was fetched and extracted.
	OutcomeInstalled Outcome = "installed"

	// OutcomeAlreadyInstalled means a completed install was found on
	// disk and the fetch was skipped. The package's dependencies are
	// still walked.
	OutcomeAlreadyInstalled Outcome = "already-installed"

	// OutcomeDuplicate means another task in the same run claimed the
	// same name and version first.
	OutcomeDuplicate Outcome = "duplicate"

	// OutcomeFailed means the task errored.
	OutcomeFailed Outcome = "failed"
)

// PackageResult is the outcome of one package task.
type PackageResult struct {
	// Key is name@version once resolution succeeded, name@range before
	// that.
	Key     string
	Name    string
	Version string
	Outcome Outcome

	// Err carries the cause when Outcome is OutcomeFailed.
	Err error
}

// Report collects the result of every task in one Install run, in
// completion order.
type Report struct {
	Results []PackageResult
}

// Count returns how many results have the given outcome.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Failures returns the failed results in completion order.
func (r *Report) Failures() []PackageResult {
	var failed []PackageResult
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			failed = append(failed, res)
		}
	}
	return failed
}

// OK reports whether every task succeeded.
func (r *Report) OK() bool {
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			return false
		}
	}
	return true
}
