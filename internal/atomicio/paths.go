package atomicio

import (
	"os"
	"path/filepath"

	"github.com/hochfrequenz/flowctl/internal/gitutil"
)

const (
	FlowDirName  = ".flow"
	StateDirName = "state"
)

// Paths bundles the three directories every command needs: the repo root,
// the git-tracked flow dir, and the worktree-shared state dir.
type Paths struct {
	RepoRoot string
	FlowDir  string
	StateDir string
}

// Resolve computes Paths starting from cwd.
//
// Repo root comes from the VCS ("show toplevel"); if cwd is not inside a
// git repository, cwd itself is used. The state dir is chosen, in order:
// an explicit FLOW_STATE_DIR override, the VCS common dir (so every
// worktree of one clone shares a state dir), or <flow>/state.
func Resolve(cwd string) Paths {
	root := gitutil.RepoRoot(cwd)
	flowDir := filepath.Join(root, FlowDirName)

	var stateDir string
	if override := os.Getenv("FLOW_STATE_DIR"); override != "" {
		stateDir = override
	} else if common := gitutil.CommonDir(cwd); common != "" {
		stateDir = filepath.Join(common, "flowctl-state")
	} else {
		stateDir = filepath.Join(flowDir, StateDirName)
	}

	return Paths{RepoRoot: root, FlowDir: flowDir, StateDir: stateDir}
}

func (p Paths) EpicsDir() string  { return filepath.Join(p.FlowDir, "epics") }
func (p Paths) SpecsDir() string  { return filepath.Join(p.FlowDir, "specs") }
func (p Paths) TasksDir() string  { return filepath.Join(p.FlowDir, "tasks") }
func (p Paths) MemoryDir() string { return filepath.Join(p.FlowDir, "memory") }
func (p Paths) MetaFile() string  { return filepath.Join(p.FlowDir, "meta.json") }
func (p Paths) ConfigFile() string { return filepath.Join(p.FlowDir, "config.json") }

func (p Paths) EpicFile(id string) string  { return filepath.Join(p.EpicsDir(), id+".json") }
func (p Paths) EpicSpecFile(id string) string { return filepath.Join(p.SpecsDir(), id+".md") }
func (p Paths) TaskFile(id string) string  { return filepath.Join(p.TasksDir(), id+".json") }
func (p Paths) TaskSpecFile(id string) string { return filepath.Join(p.TasksDir(), id+".md") }
func (p Paths) CheckpointFile(epicID string) string {
	return filepath.Join(p.FlowDir, ".checkpoint-"+epicID+".json")
}

func (p Paths) RuntimeStateDir() string { return filepath.Join(p.StateDir, "tasks") }
func (p Paths) LocksDir() string        { return filepath.Join(p.StateDir, "locks") }

func (p Paths) RuntimeFile(taskID string) string {
	return filepath.Join(p.RuntimeStateDir(), taskID+".state.json")
}
func (p Paths) LockFile(taskID string) string {
	return filepath.Join(p.LocksDir(), taskID+".lock")
}
