package leader

import (
	"io"

	"github.com/hashicorp/raft"
)

// noopFSM is the raft.FSM tugtainer's controllers run: raft here exists
// purely to elect a leader, not to replicate state. Cluster state (hosts,
// container policy rows) lives in each controller's own pkg/store, not
// in the raft log, so the FSM has nothing to apply, snapshot, or
// restore.
type noopFSM struct{}

func (noopFSM) Apply(*raft.Log) interface{} { return nil }

func (noopFSM) Snapshot() (raft.FSMSnapshot, error) { return noopSnapshot{}, nil }

func (noopFSM) Restore(rc io.ReadCloser) error { return rc.Close() }

type noopSnapshot struct{}

func (noopSnapshot) Persist(sink raft.SnapshotSink) error { return sink.Close() }

func (noopSnapshot) Release() {}
