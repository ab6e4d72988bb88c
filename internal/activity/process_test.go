package activity

import (
	"testing"

	"github.com/sbinet/pstree"
	"github.com/stretchr/testify/assert"
)

func proc(pid, ppid int, name string, children ...int) pstree.Process {
	return pstree.Process{
		Name:     name,
		Stat:     pstree.ProcessStat{Pid: pid, Ppid: ppid},
		Children: children,
	}
}

func procTree(procs ...pstree.Process) *pstree.Tree {
	tree := &pstree.Tree{Procs: make(map[int]pstree.Process, len(procs))}
	for _, p := range procs {
		tree.Procs[p.Stat.Pid] = p
	}
	return tree
}

func sshTree() *pstree.Tree {
	return procTree(
		proc(1, 0, "systemd", 100),
		proc(100, 1, "sshd", 200),
		proc(200, 100, "sshd"),
	)
}

func TestInteractiveProcess(t *testing.T) {
	tests := []struct {
		description string
		tree        *pstree.Tree
		name        string
		active      bool
	}{
		{"ssh connection", sshTree(), "sshd", true},
		{"idle sshd", procTree(proc(1, 0, "systemd", 100), proc(100, 1, "sshd")), "", false},
		{"busy tmux", procTree(
			proc(1, 0, "systemd", 300),
			proc(300, 1, "tmux: server", 301),
			proc(301, 300, "bash", 302),
			proc(302, 301, "make"),
		), "tmux: server", true},
		{"screen with idle shell", procTree(
			proc(1, 0, "systemd", 300),
			proc(300, 1, "screen", 301),
			proc(301, 300, "bash"),
		), "", false},
		{"screen without shell", procTree(proc(1, 0, "systemd", 300), proc(300, 1, "screen")), "", false},
		{"no init", procTree(proc(2, 0, "kthreadd")), "", false},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			name, active := InteractiveProcess(test.tree)

			assert.Equal(t, test.active, active)
			assert.Equal(t, test.name, name)
		})
	}
}

func TestFindProc(t *testing.T) {
	tree := sshTree()

	sshd := FindProc(tree, "sshd", 1)
	if assert.NotNil(t, sshd) {
		assert.Equal(t, 100, sshd.Stat.Pid)
	}
	assert.Nil(t, FindProc(tree, "sshd", 42))
}
