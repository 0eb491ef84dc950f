// Package leader provides controller HA leader election over
// hashicorp/raft, grounded in the teacher's pkg/manager (NewTCPTransport,
// raft-boltdb log/stable stores, FileSnapshotStore, BootstrapCluster).
// Unlike the teacher, the raft log carries no application commands: the
// FSM is a no-op (see fsm.go) and scheduled runs are simply gated on
// IsLeader so only one controller in the cluster fires check_all.
package leader

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// Config configures a single-node-or-joining raft participant.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string

	// HeartbeatTimeout/ElectionTimeout/LeaderLeaseTimeout default to
	// raft.DefaultConfig's conservative WAN-safe values when zero.
	HeartbeatTimeout   time.Duration
	ElectionTimeout    time.Duration
	LeaderLeaseTimeout time.Duration
}

// Elector wraps a *raft.Raft exposing only what the controller needs:
// whether it currently holds leadership.
type Elector struct {
	raft      *raft.Raft
	localID   raft.ServerID
	localAddr raft.ServerAddress
}

// Standalone is the elector for a single-node deployment that never
// needs leader election at all: IsLeader always reports true, so the
// controller always runs and never defers to a peer.
type Standalone struct{}

func (Standalone) IsLeader() bool { return true }

func (Standalone) Shutdown() error { return nil }

// New creates the raft participant but does not bootstrap or join a
// cluster; call Bootstrap for the first node in a new cluster, or have
// the existing leader add this node with AddVoter.
func New(cfg Config) (*Elector, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("leader: create data dir: %w", err)
	}

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)
	if cfg.HeartbeatTimeout > 0 {
		raftCfg.HeartbeatTimeout = cfg.HeartbeatTimeout
	}
	if cfg.ElectionTimeout > 0 {
		raftCfg.ElectionTimeout = cfg.ElectionTimeout
	}
	if cfg.LeaderLeaseTimeout > 0 {
		raftCfg.LeaderLeaseTimeout = cfg.LeaderLeaseTimeout
	}

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("leader: resolve bind address: %w", err)
	}

	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("leader: create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("leader: create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("leader: create log store: %w", err)
	}

	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("leader: create stable store: %w", err)
	}

	r, err := raft.NewRaft(raftCfg, noopFSM{}, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("leader: create raft: %w", err)
	}

	return &Elector{raft: r, localID: raftCfg.LocalID, localAddr: transport.LocalAddr()}, nil
}

// Bootstrap initializes a brand new single-node cluster with this node
// as its only voter. Call once, on the first controller started.
func (e *Elector) Bootstrap() error {
	cfg := raft.Configuration{
		Servers: []raft.Server{{ID: e.localID, Address: e.localAddr}},
	}
	return e.raft.BootstrapCluster(cfg).Error()
}

// AddVoter adds a peer controller to the cluster. Only the current
// leader may call this; raft itself enforces that.
func (e *Elector) AddVoter(nodeID, addr string) error {
	return e.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(addr), 0, 10*time.Second).Error()
}

// RemoveServer removes a peer controller from the cluster.
func (e *Elector) RemoveServer(nodeID string) error {
	return e.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second).Error()
}

// IsLeader reports whether this controller currently holds raft
// leadership. The scheduler checks this before firing a run.
func (e *Elector) IsLeader() bool {
	return e.raft.State() == raft.Leader
}

// LeaderAddr returns the raft-bind address of the current leader, or ""
// if none is known.
func (e *Elector) LeaderAddr() string {
	return string(e.raft.Leader())
}

// Shutdown stops raft participation.
func (e *Elector) Shutdown() error {
	return e.raft.Shutdown().Error()
}
