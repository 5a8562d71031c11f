// internal/protocol/types.go
package protocol

// DailyReport is the payload sent to the collector once per calendar day.
// It carries only counts and names; command arguments, file paths and file
// contents never appear here.
type DailyReport struct {
	DeveloperID string   `json:"developer_id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Hostname    string   `json:"hostname"`
	Date        string   `json:"date"` // YYYY-MM-DD
	ActiveHours int      `json:"active_hours"`
	ToolsUsed   []string `json:"tools_used"`

	GitActivity         GitActivity         `json:"git_activity"`
	DevelopmentActivity DevelopmentActivity `json:"development_activity"`
	ProjectContext      []string            `json:"project_context"`
}

// GitActivity summarizes commit work across all repositories.
// Repository-level sums always equal the totals.
type GitActivity struct {
	TotalCommits      int            `json:"total_commits"`
	TotalLinesAdded   int            `json:"total_lines_added"`
	TotalLinesDeleted int            `json:"total_lines_deleted"`
	TotalFilesChanged int            `json:"total_files_changed"`
	Repositories      []RepoActivity `json:"repositories"`
}

// RepoActivity is the per-repository slice of GitActivity.
type RepoActivity struct {
	Name           string   `json:"name"`
	Commits        int      `json:"commits"`
	LinesAdded     int      `json:"lines_added"`
	LinesDeleted   int      `json:"lines_deleted"`
	FilesChanged   int      `json:"files_changed"`
	BranchesWorked []string `json:"branches_worked"`
}

// DevelopmentActivity counts test and build invocations detected in the
// command history. Only counts are kept, never the matched text.
type DevelopmentActivity struct {
	TestRunsDetected      int `json:"test_runs_detected"`
	BuildCommandsDetected int `json:"build_commands_detected"`
}
