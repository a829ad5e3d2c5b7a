package headerstore

// nodeIdx indexes into GroupHeaders.nodes. -1 means "no node" /
// "forest root".
type nodeIdx int32

const noNode nodeIdx = -1

// node is one slot of the per-group threading graph (spec.md §4.6.2).
// A node with articleIdx == -1 is a ghost: referenced by some article's
// References line but never itself posted (yet).
type node struct {
	messageID  string
	articleIdx int32
	parent     nodeIdx
	children   []nodeIdx
}

func (n *node) isGhost() bool { return n.articleIdx < 0 }

// nodeByMid looks up the node index for a message-id.
func (g *GroupHeaders) nodeByMid(mid string) (nodeIdx, bool) {
	i, ok := g.nodes[mid]
	return i, ok
}

// getOrCreateNode returns the node for mid, creating a ghost if absent.
func (g *GroupHeaders) getOrCreateNode(mid string) nodeIdx {
	if i, ok := g.nodes[mid]; ok {
		return i
	}
	idx := nodeIdx(len(g.arena))
	g.arena = append(g.arena, node{messageID: mid, articleIdx: -1, parent: noNode})
	g.nodes[mid] = idx
	return idx
}

func (g *GroupHeaders) at(i nodeIdx) *node { return &g.arena[i] }

// attach makes parent the parent of child, recording the back-edge both
// ways.
func (g *GroupHeaders) attach(child, parent nodeIdx) {
	g.at(child).parent = parent
	g.at(parent).children = append(g.at(parent).children, child)
}

// detach removes child from its current parent's children list, if any.
func (g *GroupHeaders) detach(child nodeIdx) {
	p := g.at(child).parent
	if p == noNode {
		return
	}
	siblings := g.at(p).children
	for i, c := range siblings {
		if c == child {
			g.at(p).children = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	g.at(child).parent = noNode
}

// ancestorContains reports whether walking up from start (inclusive)
// ever reaches target.
func (g *GroupHeaders) ancestorContains(start, target nodeIdx) bool {
	for i := start; i != noNode; i = g.at(i).parent {
		if i == target {
			return true
		}
	}
	return false
}

// findAncestorByMid searches the ancestor chain starting at the parent
// of start (start itself is excluded) for a node whose message-id is
// mid, returning it if found.
func (g *GroupHeaders) findAncestorByMid(start nodeIdx, mid string) (nodeIdx, bool) {
	for i := g.at(start).parent; i != noNode; i = g.at(i).parent {
		if g.at(i).messageID == mid {
			return i, true
		}
	}
	return noNode, false
}

func containsBefore(refs []string, before int, mid string) bool {
	for i := 0; i < before; i++ {
		if refs[i] == mid {
			return true
		}
	}
	return false
}

// threadArticle walks References right-to-left (the immediate parent,
// refs[len-1], first) and positions mid in the graph per spec.md
// §4.6.2:
//
//  1. if the working node's ancestor chain already contains the
//     reference token, jump to it (a gap we've already filled);
//  2. else if the working node has no parent yet, attach it under the
//     (possibly newly-created ghost) node for the token;
//  3. else if the working node's current parent's message-id appears
//     earlier in the References list than the token being processed,
//     the token fills a missing level: detach and re-attach under it;
//  4. else leave the working node where it is and advance to the next
//     token.
//
// A token equal to mid itself is ignored. Any other attach that would
// introduce a cycle is skipped and threading stops early for this
// article (the graph never grows a cycle).
func (g *GroupHeaders) threadArticle(mid string, references []string) {
	working := g.getOrCreateNode(mid)
	for i := len(references) - 1; i >= 0; i-- {
		ref := references[i]
		if ref == mid {
			continue
		}
		if anc, ok := g.findAncestorByMid(working, ref); ok {
			working = anc
			continue
		}
		if g.at(working).parent == noNode {
			target := g.getOrCreateNode(ref)
			if g.ancestorContains(target, working) {
				break // would create a cycle
			}
			g.attach(working, target)
			working = target
			continue
		}
		parentMid := g.at(g.at(working).parent).messageID
		if containsBefore(references, i, parentMid) {
			target := g.getOrCreateNode(ref)
			if g.ancestorContains(target, working) {
				break
			}
			g.detach(working)
			g.attach(working, target)
			working = target
			continue
		}
		// none of the above: stay put, advance to the next token.
	}
}

// reconstructReferences rebuilds a References line for mid from the
// current graph shape, newest-ancestor last (spec.md §4.6.2
// "Rebuilding References"). Save writes it as each article's R line
// and References returns it, so both reflect the ancestry the graph
// has learned, not the article's original header.
func (g *GroupHeaders) reconstructReferences(mid string) []string {
	idx, ok := g.nodes[mid]
	if !ok {
		return nil
	}
	var chain []string
	for p := g.at(idx).parent; p != noNode; p = g.at(p).parent {
		chain = append(chain, g.at(p).messageID)
	}
	// chain is now immediate-parent-first; References wants oldest-first.
	for l, r := 0, len(chain)-1; l < r; l, r = l+1, r-1 {
		chain[l], chain[r] = chain[r], chain[l]
	}
	return chain
}

// removeArticles deletes the articles named by mids from the graph.
// Each removed node's children are re-parented onto its nearest
// surviving ancestor (the first ancestor, walking up, whose node is
// not itself being removed) or to the forest root if none remains
// (spec.md §4.6.2 "Reparenting on removal"). Each removed node stays
// in the graph as a detached, childless ghost; nothing is pruned.
func (g *GroupHeaders) removeArticles(mids []string) []ReparentEntry {
	removing := make(map[nodeIdx]bool, len(mids))
	for _, mid := range mids {
		if idx, ok := g.nodes[mid]; ok {
			removing[idx] = true
		}
	}
	var reparented []ReparentEntry
	for idx := range removing {
		newParent := g.at(idx).parent
		for newParent != noNode && removing[newParent] {
			newParent = g.at(newParent).parent
		}
		for _, child := range append([]nodeIdx(nil), g.at(idx).children...) {
			if removing[child] {
				continue
			}
			oldParentMid := g.at(idx).messageID
			newParentMid := ""
			g.detach(child)
			if newParent != noNode {
				g.attach(child, newParent)
				newParentMid = g.at(newParent).messageID
			}
			reparented = append(reparented, ReparentEntry{
				MessageID: g.at(child).messageID,
				OldParent: oldParentMid,
				NewParent: newParentMid,
			})
		}
	}
	for idx := range removing {
		g.detach(idx)
		g.at(idx).articleIdx = -1
		g.at(idx).children = nil
	}
	return reparented
}
