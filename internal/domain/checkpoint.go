package domain

import "time"

const CheckpointSchemaVersion = 1

// Checkpoint is a full point-in-time snapshot of one epic: its definition,
// its spec markdown, and every owned task's definition, spec, and runtime
// state, bundled into a single restorable file.
type Checkpoint struct {
	SchemaVersion int                `json:"schema_version"`
	CreatedAt     time.Time          `json:"created_at"`
	EpicID        EpicID             `json:"epic_id"`
	Epic          CheckpointEpic     `json:"epic"`
	Tasks         []CheckpointTask   `json:"tasks"`
}

// CheckpointEpic bundles an epic's definition record with its spec
// markdown content.
type CheckpointEpic struct {
	Data Epic   `json:"data"`
	Spec string `json:"spec"`
}

// CheckpointTask bundles one task's definition, spec markdown, and
// runtime state.
type CheckpointTask struct {
	ID      TaskID  `json:"id"`
	Data    TaskDef `json:"data"`
	Spec    string  `json:"spec"`
	Runtime Runtime `json:"runtime"`
}
