package nox

import (
	"bufio"
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/aristath/taskdeck/internal/task"
)

// Parameter keys set on every task that has them.
const (
	ParamPython  = "python"
	ParamSession = "session"
)

// parseSessions converts the output of `nox --list-sessions --json` into tasks.
// nox only reports the selected sessions here and says nothing about which ones run by
// default, so IsDefault is left for mergeListing to fill in.
//
// Each element looks like:
//
//	{"session": "tests-3.11", "name": "tests", "description": null,
//	 "python": "3.11", "tags": ["test"], "call_spec": {"param1": "value1"}}
func parseSessions(dir string, data []byte) ([]task.Task, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid session listing JSON from %s", dir)
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, fmt.Errorf("session listing from %s is not a JSON array", dir)
	}

	var tasks []task.Task
	var parseErr error
	root.ForEach(func(_, s gjson.Result) bool {
		session := s.Get("session").String()
		name := s.Get("name").String()
		if session == "" {
			parseErr = fmt.Errorf("session entry without a signature in %s: %s", dir, s.Raw)
			return false
		}
		if name == "" {
			name = session
		}

		params := map[string]string{ParamSession: session}
		if py := s.Get("python"); py.Exists() && py.Type != gjson.Null {
			params[ParamPython] = py.String()
		}
		s.Get("call_spec").ForEach(func(k, v gjson.Result) bool {
			params[k.String()] = v.String()
			return true
		})

		var tags []string
		s.Get("tags").ForEach(func(_, v gjson.Result) bool {
			tags = append(tags, v.String())
			return true
		})

		matrix := ""
		if session != name {
			matrix = name
		}

		tasks = append(tasks, task.Task{
			ID:               session,
			Name:             name,
			Description:      strings.TrimSpace(s.Get("description").String()),
			WorkingDirectory: dir,
			FrameworkName:    Name,
			Parameters:       params,
			CategoryTags:     tags,
			MatrixGroup:      matrix,
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return tasks, nil
}

var (
	ansiEscape  = regexp.MustCompile(`\x1b\[[0-9;]*m`)
	listingLine = regexp.MustCompile(`^([*-]) (\S.*?)(?: -> (.*))?$`)
)

// listedSession is one row of the plain `nox --list-sessions` output.
type listedSession struct {
	signature   string
	selected    bool
	description string
}

// parseListing reads the plain session listing. Every session of the noxfile appears,
// marked "*" when nox would run it by default and "-" otherwise:
//
//	Sessions defined in /src/noxfile.py:
//
//	* tests-3.11
//	- docs -> Build documentation for the project.
//
//	sessions marked with * are selected, sessions marked with - are skipped.
//
// Anything before the "Sessions defined in" header is the noxfile docstring and skipped.
func parseListing(data []byte) []listedSession {
	var out []listedSession
	inSessions := false
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimRight(ansiEscape.ReplaceAllString(sc.Text(), ""), " \r")
		if !inSessions {
			inSessions = strings.HasPrefix(line, "Sessions defined in ")
			continue
		}
		m := listingLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		out = append(out, listedSession{
			signature:   m[2],
			selected:    m[1] == "*",
			description: strings.TrimSpace(m[3]),
		})
	}
	return out
}

// mergeListing orders tasks as the plain listing does and marks the selected ones as
// default. Sessions missing from the JSON details still become tasks with what the
// listing knows about them.
func mergeListing(dir string, listed []listedSession, details []task.Task) []task.Task {
	bySession := make(map[string]task.Task, len(details))
	for _, t := range details {
		bySession[t.ID] = t
	}

	tasks := make([]task.Task, 0, len(listed))
	for _, l := range listed {
		t, ok := bySession[l.signature]
		if !ok {
			t = task.Task{
				ID:               l.signature,
				Name:             l.signature,
				WorkingDirectory: dir,
				FrameworkName:    Name,
				Parameters:       map[string]string{ParamSession: l.signature},
			}
		}
		if t.Description == "" {
			t.Description = l.description
		}
		t.IsDefault = l.selected
		tasks = append(tasks, t)
	}
	return tasks
}

// disambiguate prefixes colliding session IDs with their directory base name.
// The session signature stays available in Parameters for the runner.
func disambiguate(tasks []task.Task) []task.Task {
	seen := make(map[string]int, len(tasks))
	for _, t := range tasks {
		seen[t.ID]++
	}
	for i, t := range tasks {
		if seen[t.ID] > 1 {
			tasks[i].ID = filepath.Base(t.WorkingDirectory) + "/" + t.ID
		}
	}
	return tasks
}

// sessionOf returns the nox session signature of t.
func sessionOf(t task.Task) string {
	if s := t.Parameters[ParamSession]; s != "" {
		return s
	}
	return t.ID
}
