package preflight

import "alchemist/internal/config"

// Result reports the outcome of a single preflight check. Optional checks
// never block start up.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes the local preflight checks for the given config. Network
// checks are left to the callers that want them.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Assets directory", cfg.Paths.AssetsDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckFreeSpace("Data disk space", cfg.Paths.DataDir, MinFreeBytes),
		CheckSourcesFile(cfg.Paths.SourcesFile),
		CheckAPIKey("LLM API key", cfg.LLM.APIKey, false),
	}
	for _, status := range CheckSystemDeps(cfg) {
		result := Result{Name: status.Name, Passed: status.Available, Optional: status.Optional, Detail: status.Detail}
		if status.Available {
			result.Detail = status.Command + " found"
			if status.Version != "" {
				result.Detail = status.Version
			}
		}
		results = append(results, result)
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}
