// Package deps reports whether the external binaries enabled stages shell
// out to are installed, and which version answered.
package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const versionTimeout = 5 * time.Second

// Requirement names a binary a stage invokes. VersionArgs, when set, are
// passed to the binary to read its version banner; a check that exits
// non-zero marks the binary unusable.
type Requirement struct {
	Name        string
	Command     string
	VersionArgs []string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency. Command is the resolved
// path when the binary was found and Version is the first banner line.
type Status struct {
	Name        string
	Command     string
	Version     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// FFmpeg is the requirement of the video assembly step.
func FFmpeg(command string) Requirement {
	return Requirement{
		Name:        "FFmpeg",
		Command:     command,
		VersionArgs: []string{"-version"},
		Description: "Required for video assembly",
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, check(req))
	}
	return results
}

func check(req Requirement) Status {
	cmd := strings.TrimSpace(req.Command)
	status := Status{
		Name:        req.Name,
		Command:     cmd,
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if cmd == "" {
		status.Detail = "command not configured"
		return status
	}
	resolved, err := exec.LookPath(cmd)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", cmd)
		return status
	}
	status.Command = resolved
	if len(req.VersionArgs) > 0 {
		version, err := readVersion(resolved, req.VersionArgs)
		if err != nil {
			status.Detail = fmt.Sprintf("%s %s failed: %v", resolved, strings.Join(req.VersionArgs, " "), err)
			return status
		}
		status.Version = version
	}
	status.Available = true
	return status
}

func readVersion(binary string, args []string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), versionTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, binary, args...).Output()
	if err != nil {
		return "", err
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	return "", nil
}
