package termkey

// seqTrie is a byte automaton over registered escape sequences.
type seqTrie struct {
	root *seqNode
	size int
}

type seqNode struct {
	next map[byte]*seqNode
	key  Key
	term bool
}

func (t *seqTrie) add(seq []byte, k Key) {
	if t.root == nil {
		t.root = &seqNode{}
	}
	n := t.root
	for _, b := range seq {
		next := n.next[b]
		if next == nil {
			if n.next == nil {
				n.next = make(map[byte]*seqNode)
			}
			next = &seqNode{}
			n.next[b] = next
		}
		n = next
	}
	if !n.term {
		t.size++
	}
	n.key, n.term = k, true
}

// match finds the longest registered sequence at the head of buf. If buf
// ends part way down a longer sequence it reports peekAgain, unless force
// is set, in which case the longest complete match found so far wins.
func (t *seqTrie) match(buf []byte, force bool) (Key, int, peekResult) {
	if t.root == nil {
		return Key{}, 0, peekNone
	}

	var best *seqNode
	bestLen := 0
	n := t.root
	for i, b := range buf {
		n = n.next[b]
		if n == nil {
			break
		}
		if n.term {
			best, bestLen = n, i+1
		}
		if i == len(buf)-1 && len(n.next) > 0 && !force {
			return Key{}, 0, peekAgain
		}
	}

	if best == nil {
		return Key{}, 0, peekNone
	}
	return best.key, bestLen, peekKey
}
