package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hochfrequenz/flowctl/internal/atomicio"
	"github.com/hochfrequenz/flowctl/internal/config"
	"github.com/hochfrequenz/flowctl/internal/flowerr"
	"github.com/hochfrequenz/flowctl/internal/gitutil"
	"github.com/hochfrequenz/flowctl/internal/lifecycle"
	"github.com/hochfrequenz/flowctl/internal/store"
)

// appContext bundles everything most commands need: resolved paths, the
// store, the merged config, and the resolved actor identity.
type appContext struct {
	Paths  atomicio.Paths
	Store  *store.Store
	Config *config.Config
	Actor  string
}

// newAppContext resolves paths from the current working directory, opens
// the store, and loads config.json (falling back to built-in defaults).
func newAppContext() (*appContext, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, flowerr.Wrap(flowerr.KindExternalTool, "resolving working directory", err)
	}
	paths := atomicio.Resolve(cwd)
	s := store.New(paths)

	cfg, err := config.Load(paths.ConfigFile())
	if err != nil {
		return nil, flowerr.Wrap(flowerr.KindMalformed, "loading config.json", err)
	}

	gitEmail := gitutil.ConfigValue(cwd, "user.email")
	gitName := gitutil.ConfigValue(cwd, "user.name")
	actor := lifecycle.CurrentActor(gitEmail, gitName)

	return &appContext{Paths: paths, Store: s, Config: cfg, Actor: actor}, nil
}

// engine returns a lifecycle.Engine bound to this context's store and actor.
func (a *appContext) engine() *lifecycle.Engine {
	return lifecycle.New(a.Store, a.Actor)
}

// requireInit errors if .flow/ has not been initialized, the precondition
// nearly every command other than init itself relies on.
func (a *appContext) requireInit() error {
	if !a.Store.Def.Exists() {
		return flowerr.New(flowerr.KindNotFound, ".flow not initialized; run `flowctl init`")
	}
	return nil
}

// readFileArg reads the content for a --file/--description/--acceptance/…
// flag, honoring the "-" convention meaning "read from stdin".
func readFileArg(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", flowerr.Wrap(flowerr.KindExternalTool, "reading stdin", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", flowerr.Wrap(flowerr.KindNotFound, fmt.Sprintf("reading %s", path), err)
	}
	return string(data), nil
}

// emitResult prints v as JSON (if --json) or lets the caller's text
// rendering function run; success results are wrapped in {success:true,...}
// for JSON consumers per the documented contract.
func emitResult(v any, textFn func()) {
	if jsonOutput {
		envelope := map[string]any{"success": true}
		if m, ok := toMap(v); ok {
			for k, val := range m {
				envelope[k] = val
			}
		} else {
			envelope["result"] = v
		}
		data, err := json.MarshalIndent(envelope, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		fmt.Println(string(data))
		return
	}
	textFn()
}

func toMap(v any) (map[string]any, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false
	}
	return m, true
}

// emitError prints err as one-line text or a {success:false,error} object,
// per the JSON/text output contract.
func emitError(err error) {
	if jsonOutput {
		data, _ := json.Marshal(map[string]any{"success": false, "error": err.Error()})
		fmt.Fprintln(os.Stderr, string(data))
		return
	}
	fmt.Fprintln(os.Stderr, "error:", err)
}

func exitCodeFor(err error) int {
	return flowerr.ExitCodeFor(err)
}
