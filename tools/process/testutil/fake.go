// Package testutil provides a scripted process.Runner for tests.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/c360studio/qualitygate/tools/process"
)

// Response is what the fake returns for a matching command.
type Response struct {
	Result process.Result
	Err    error
	// Do runs before the response is returned, e.g. to write report files.
	Do func(cmd process.Command) error
}

// FakeRunner matches commands by prefix of their rendered command line.
// Unmatched commands succeed with empty output.
//
// Example:
//
//	runner := &testutil.FakeRunner{}
//	runner.On("npx nx report", testutil.Response{Result: process.Result{ExitCode: 0}})
type FakeRunner struct {
	mu       sync.Mutex
	rules    []rule
	Commands []process.Command
}

type rule struct {
	prefix string
	resp   Response
}

// On registers a response for commands whose line starts with prefix. Later
// registrations take precedence.
func (f *FakeRunner) On(prefix string, resp Response) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append([]rule{{prefix: prefix, resp: resp}}, f.rules...)
	return f
}

// Run implements process.Runner.
func (f *FakeRunner) Run(_ context.Context, cmd process.Command) (process.Result, error) {
	f.mu.Lock()
	f.Commands = append(f.Commands, cmd)
	var resp Response
	line := cmd.String()
	for _, r := range f.rules {
		if strings.HasPrefix(line, r.prefix) {
			resp = r.resp
			break
		}
	}
	f.mu.Unlock()

	if resp.Do != nil {
		if err := resp.Do(cmd); err != nil {
			return process.Result{ExitCode: 1}, err
		}
	}
	return resp.Result, resp.Err
}

// Lines returns the rendered command lines run so far.
func (f *FakeRunner) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Commands))
	for i, c := range f.Commands {
		out[i] = c.String()
	}
	return out
}
