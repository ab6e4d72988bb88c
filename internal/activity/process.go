package activity

import (
	"github.com/sbinet/pstree"
)

// FindProc returns the first process called name whose parent is parent.
func FindProc(tree *pstree.Tree, name string, parent int) *pstree.Process {
	for _, p := range tree.Procs {
		if p.Stat.Ppid == parent && p.Name == name {
			return &p
		}
	}
	return nil
}

// InteractiveProcess reports whether the tree shows someone at work: an
// sshd started by init that has open connections, or a screen/tmux server
// whose shell is running something. It returns the name of the process
// that gave it away.
func InteractiveProcess(tree *pstree.Tree) (string, bool) {
	if sshd := FindProc(tree, "sshd", 1); sshd != nil && len(sshd.Children) > 0 {
		return "sshd", true
	}
	root, ok := tree.Procs[1]
	if !ok {
		return "", false
	}
	for _, pid := range root.Children {
		server, ok := tree.Procs[pid]
		if !ok || (server.Name != "screen" && server.Name != "tmux: server") {
			continue
		}
		// The multiplexer runs a shell; the shell has to be running something.
		if len(server.Children) == 0 {
			continue
		}
		if shell, ok := tree.Procs[server.Children[0]]; ok && len(shell.Children) > 0 {
			return server.Name, true
		}
	}
	return "", false
}
