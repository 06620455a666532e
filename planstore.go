package gputune

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
)

// planDir returns the project's plan directory, <home>/.<project>.
func planDir(project string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
		if home == "" {
			return "", fmt.Errorf("gputune: resolve home directory: %w", err)
		}
	}
	return filepath.Join(home, "."+project), nil
}

func planPath(project, name string) (string, error) {
	dir, err := planDir(project)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name+".plan"), nil
}

// PlanExists reports whether a plan file exists for project/name.
func PlanExists(project, name string) bool {
	path, err := planPath(project, name)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// WritePlan persists ctx.Plan to <home>/.<ctx.Project>/<ctx.PlanName>.plan,
// creating the project directory if absent, in ascending id order (spec
// §4.1). The write is atomic via renameio, so a crash or concurrent reader
// never observes a half-written plan.
func WritePlan(ctx *Context) error {
	dir, err := planDir(ctx.Project)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("gputune: create project directory %s: %w", dir, err)
	}
	path, err := planPath(ctx.Project, ctx.PlanName)
	if err != nil {
		return err
	}

	byID := make(map[int]*PlanEntry, ctx.Plan.Len())
	max := -1
	for i := 0; i < ctx.Plan.Len(); i++ {
		e := ctx.Plan.At(i)
		byID[e.ID] = e
		if e.ID > max {
			max = e.ID
		}
	}

	var buf bytes.Buffer
	buf.WriteString("# gputune plan file\n\n")
	for id := 0; id <= max; id++ {
		e, ok := byID[id]
		if !ok {
			continue
		}
		var loc string
		switch e.Loc {
		case LocationDevice:
			loc = "global"
		case LocationPinnedHost:
			loc = "pinned"
		default:
			return fmt.Errorf("%w: %d", ErrUnknownLocation, e.Loc)
		}
		fmt.Fprintf(&buf, "begin\n")
		fmt.Fprintf(&buf, "  id %d\n", e.ID)
		fmt.Fprintf(&buf, "  size %d\n", e.Size)
		fmt.Fprintf(&buf, "  loc %s\n", loc)
		if e.InLoop {
			fmt.Fprintf(&buf, "  inloop true\n")
		}
		fmt.Fprintf(&buf, "end\n\n")
	}

	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("gputune: write plan %s: %w", path, err)
	}
	logTuneEvent(ctx, "plan persisted")
	return nil
}

// ReadPlan loads a previously persisted plan for project/name.
func ReadPlan(project, name string) (Plan, error) {
	path, err := planPath(project, name)
	if err != nil {
		return Plan{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Plan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, path)
		}
		return Plan{}, fmt.Errorf("gputune: open plan %s: %w", path, err)
	}
	defer f.Close()

	var plan Plan
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "begin" {
			entry, err := readPlanEntry(scanner)
			if err != nil {
				return Plan{}, err
			}
			plan.Append(entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return Plan{}, fmt.Errorf("gputune: read plan %s: %w", path, err)
	}
	return plan, nil
}

// readPlanEntry consumes lines up to and including the matching "end",
// permissively ignoring unknown keys (forward-compatibility, spec §4.1).
func readPlanEntry(scanner *bufio.Scanner) (*PlanEntry, error) {
	entry := &PlanEntry{Loc: LocationDevice}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		key := fields[0]
		if key == "end" {
			return entry, nil
		}
		if len(fields) < 2 {
			continue
		}
		val := fields[1]
		switch key {
		case "id":
			n, err := strconv.Atoi(val)
			if err != nil {
				return nil, fmt.Errorf("gputune: parse plan id %q: %w", val, err)
			}
			entry.ID = n
		case "size":
			n, err := strconv.ParseUint(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("gputune: parse plan size %q: %w", val, err)
			}
			entry.Size = n
		case "loc":
			switch val {
			case "global":
				entry.Loc = LocationDevice
			case "pinned":
				entry.Loc = LocationPinnedHost
			default:
				return nil, fmt.Errorf("%w: %q", ErrUnknownLocation, val)
			}
		case "inloop":
			entry.InLoop = val == "true"
		default:
			// unknown key: ignored for forward-compatibility
		}
	}
	return nil, fmt.Errorf("gputune: plan entry missing closing \"end\"")
}
