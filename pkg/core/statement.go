package core

// Phase identifies one of the four ordered statement lists of a pipeline.
type Phase string

// Pipeline phases in execution order.
const (
	PhaseDrop   Phase = "drop"
	PhaseCreate Phase = "create"
	PhaseCopy   Phase = "copy"
	PhaseInsert Phase = "insert"
)

// Phases returns every phase in the order a full pipeline executes them.
func Phases() []Phase {
	return []Phase{PhaseDrop, PhaseCreate, PhaseCopy, PhaseInsert}
}

// Statement is a single DDL or DML statement issued against the warehouse.
type Statement struct {
	Phase Phase  `json:"phase" yaml:"phase"`
	Table string `json:"table" yaml:"table"`
	// Name is a short stable label such as "create_songplay".
	Name string `json:"name" yaml:"name"`
	SQL  string `json:"sql" yaml:"sql"`
}
