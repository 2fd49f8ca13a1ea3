package models

import "fmt"

// State is the outcome of a single sandboxed test run.
type State string

const (
	StateSuccess State = "success"
	StateFailure State = "failure"
)

// ExperimentInput identifies a (downstream project, library) pair under test.
type ExperimentInput struct {
	Project        string `yaml:"project" json:"project"`                                     // owner/name of the downstream project
	ProjectCommit  string `yaml:"project_commit" json:"project_commit"`                       // revision the harness checks out
	ProjectPackage string `yaml:"project_package,omitempty" json:"project_package,omitempty"` // package name the project publishes
	Library        string `yaml:"library,omitempty" json:"library,omitempty"`                 // owner/name of the library repository
	LibraryPackage string `yaml:"library_package" json:"library_package"`                     // package name in the registry
	Range          string `yaml:"range" json:"range"`                                         // range the project currently depends on
}

// Resolve extends the input with a concrete library version.
func (in ExperimentInput) Resolve(v Version) ResolvedInput {
	return ResolvedInput{
		ExperimentInput: in,
		LibraryVersion:  v.Version,
		LibraryHash:     v.Hash,
	}
}

// Label is the progress label reported when an input's sequence finishes.
func (in ExperimentInput) Label() string {
	return fmt.Sprintf("%s & %s", in.Library, in.ProjectPackage)
}

// ResolvedInput is an ExperimentInput pinned to one library version.
type ResolvedInput struct {
	ExperimentInput
	LibraryVersion string `json:"library_version"`
	LibraryHash    string `json:"library_hash"`
}

// VersionedLibrary returns the package@version argument for the pinned version, e.g. "left-pad@1.3.0".
func (r ResolvedInput) VersionedLibrary() string {
	return r.LibraryPackage + "@" + r.LibraryVersion
}

// Version is a published library version and the source revision it was built from.
type Version struct {
	Version string `json:"version"`
	Hash    string `json:"hash"`
}

// TestStatus is the full outcome of one sandboxed run, including its captured output.
type TestStatus struct {
	State State
	Log   string
	Cause FailureCause // empty on success
}

// Summary drops the log, which is persisted separately.
func (s TestStatus) Summary() StatusSummary {
	return StatusSummary{State: s.State}
}

// StatusSummary is the part of a TestStatus stored in the aggregate file.
type StatusSummary struct {
	State State `json:"state"`
}

// TestResult is one entry of the aggregate output.
type TestResult struct {
	Input  ResolvedInput `json:"input"`
	Status StatusSummary `json:"status"`
}

// NewTestResult builds the aggregate entry for a run.
func NewTestResult(input ResolvedInput, status TestStatus) TestResult {
	return TestResult{
		Input:  input,
		Status: status.Summary(),
	}
}
