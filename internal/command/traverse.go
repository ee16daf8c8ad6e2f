package command

// Leaf pairs a leaf command with the metadata accumulated on the path from
// the root to it (own metadata merged over ancestors', per Collect's DFS).
// A Fork is itself a leaf here; its inner command is reached through
// ForkInner, not by descending past it, matching "Fork treated as a leaf
// (its inner tree traversed on demand)".
type Leaf struct {
	Cmd  Command
	Meta Metadata
}

// Collect yields a depth-first, left-to-right stream of leaves with
// accumulated metadata. Stable: re-running Collect on the same tree always
// produces the same order (no map iteration is involved).
func (c Command) Collect() []Leaf {
	return collect(c, Metadata{}, nil)
}

func collect(c Command, acc Metadata, out []Leaf) []Leaf {
	merged := acc.Merge(c.Metadata)
	if c.Kind == KindSequence {
		for _, child := range c.Children {
			out = collect(child, merged, out)
		}
		return out
	}
	return append(out, Leaf{Cmd: c, Meta: merged})
}

// ForkInner collects the leaves of a Fork's inner command, continuing
// metadata accumulation from this leaf's own accumulated metadata. It is
// a no-op (nil slice) for any non-Fork leaf.
func (l Leaf) ForkInner() []Leaf {
	if l.Cmd.Kind != KindFork || l.Cmd.Inner == nil {
		return nil
	}
	return collect(*l.Cmd.Inner, l.Meta, nil)
}

// Transform rebuilds the tree bottom-up, applying f to every node after its
// children (Sequence) or inner command (Fork) have already been
// transformed. Leaves other than Fork have f applied directly.
func (c Command) Transform(f func(Command) Command) Command {
	switch c.Kind {
	case KindSequence:
		children := make([]Command, len(c.Children))
		for i, child := range c.Children {
			children[i] = child.Transform(f)
		}
		rebuilt := c
		rebuilt.Children = children
		return f(rebuilt)
	case KindFork:
		inner := c.Inner.Transform(f)
		rebuilt := c
		rebuilt.Inner = &inner
		return f(rebuilt)
	default:
		return f(c)
	}
}

// WithMetadata returns a copy of c with m merged into c's own Metadata bag.
// Because Collect accumulates metadata down the tree, applying WithMetadata
// to a Sequence and then collecting is equivalent to applying it to each
// child individually and then collecting (with_metadata commutes with
// Sequence).
func (c Command) WithMetadata(m Metadata) Command {
	out := c
	out.Metadata = c.Metadata.Merge(m)
	return out
}

// AssignIDs stamps every node with a fresh id produced by gen, bottom-up.
func (c Command) AssignIDs(gen func() string) Command {
	return c.Transform(func(n Command) Command {
		n.Metadata.ID = gen()
		return n
	})
}

// RemoveSchedulingIdles drops every Idle node flagged OnlyForScheduling,
// collapsing the Sequence structure around the gap it leaves. Safe to call
// on an already-cleaned tree (idempotent: nothing flagged remains).
func (c Command) RemoveSchedulingIdles() Command {
	switch c.Kind {
	case KindIdle:
		if c.OnlyForScheduling {
			return Command{Kind: KindSequence}
		}
		return c
	case KindSequence:
		kept := make([]Command, 0, len(c.Children))
		for _, child := range c.Children {
			r := child.RemoveSchedulingIdles()
			if r.IsEmptySequence() {
				continue
			}
			if r.Kind == KindSequence && r.Metadata == (Metadata{}) {
				kept = append(kept, r.Children...)
			} else {
				kept = append(kept, r)
			}
		}
		rebuilt := c
		rebuilt.Children = kept
		return rebuilt
	case KindFork:
		inner := c.Inner.RemoveSchedulingIdles()
		rebuilt := c
		rebuilt.Inner = &inner
		return rebuilt
	default:
		return c
	}
}
