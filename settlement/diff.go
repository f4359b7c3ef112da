package settlement

import (
	"sort"

	"github.com/warp/benefit-engine/timeline"
)

// =============================================================================
// ORDER DIFF - Incremental payment orders between settlements
// =============================================================================

// diffOrder assigns change codes to the freshly built lines by structurally
// comparing them with the previous order for the same payer:
//
//   - a run identical to a prior run is UNCHANGED and keeps its sequence
//   - a run overlapping a prior run replaces it: CHANGED, predecessor linked
//   - a run with no prior counterpart is NEW
//   - a prior run with no successor gets a cancellation line dated at the
//     first divergence
//
// Lines stay date-ordered and non-overlapping except for cancellation lines,
// which reference the run they stop.
func diffOrder(payer Payer, correlationID string, prior *Order, current []Line) Order {
	out := Order{Payer: payer, CorrelationID: correlationID}

	var priorActive []Line
	nextSeq := 1
	if prior != nil {
		priorActive = prior.Active()
		for _, l := range prior.Lines {
			if l.Seq >= nextSeq {
				nextSeq = l.Seq + 1
			}
		}
	}

	matched := make(map[int]bool) // prior seq -> consumed by a current line

	for _, line := range current {
		if p, ok := findSameRun(priorActive, line, matched); ok {
			matched[p.Seq] = true
			line.Seq = p.Seq
			line.PredecessorSeq = p.PredecessorSeq
			line.Change = ChangeUnchanged
			out.Lines = append(out.Lines, line)
			continue
		}
		if p, ok := findOverlap(priorActive, line, matched); ok {
			matched[p.Seq] = true
			line.Seq = nextSeq
			nextSeq++
			line.PredecessorSeq = p.Seq
			line.Change = ChangeChanged
			out.Lines = append(out.Lines, line)
			continue
		}
		line.Seq = nextSeq
		nextSeq++
		line.Change = ChangeNew
		out.Lines = append(out.Lines, line)
	}

	// Prior runs nobody replaced are stopped from their first divergent day.
	for _, p := range priorActive {
		if matched[p.Seq] {
			continue
		}
		cancel := p
		from := p.From
		cancel.Seq = nextSeq
		nextSeq++
		cancel.PredecessorSeq = p.Seq
		cancel.Change = ChangeChanged
		cancel.StatusFromDate = &from
		cancel.CorrelationID = correlationID
		out.Lines = append(out.Lines, cancel)
	}

	sort.SliceStable(out.Lines, func(i, j int) bool { return out.Lines[i].From.Before(out.Lines[j].From) })
	return out
}

func findSameRun(prior []Line, line Line, matched map[int]bool) (Line, bool) {
	for _, p := range prior {
		if !matched[p.Seq] && p.sameRun(line) {
			return p, true
		}
	}
	return Line{}, false
}

func findOverlap(prior []Line, line Line, matched map[int]bool) (Line, bool) {
	span := timeline.Period{Start: line.From, End: line.To}
	for _, p := range prior {
		if matched[p.Seq] {
			continue
		}
		if span.Overlaps(timeline.Period{Start: p.From, End: p.To}) {
			return p, true
		}
	}
	return Line{}, false
}

// Apply replays a transmitted change set onto the prior active line set and
// returns the resulting active lines. Replaying settlement N-1's lines plus
// settlement N's Changes() must reconstruct settlement N's active lines
// exactly; the round-trip is what downstream disbursement relies on.
func Apply(prior []Line, changes []Line) []Line {
	bySeq := make(map[int]Line, len(prior))
	order := make([]int, 0, len(prior))
	for _, p := range prior {
		bySeq[p.Seq] = p
		order = append(order, p.Seq)
	}

	for _, c := range changes {
		switch {
		case c.IsCancellation():
			target, ok := bySeq[c.PredecessorSeq]
			if !ok {
				continue
			}
			if c.StatusFromDate.BeforeOrEqual(target.From) {
				delete(bySeq, c.PredecessorSeq)
			} else {
				target.To = c.StatusFromDate.AddDays(-1)
				bySeq[c.PredecessorSeq] = target
			}
		case c.Change == ChangeChanged:
			delete(bySeq, c.PredecessorSeq)
			bySeq[c.Seq] = c
			order = append(order, c.Seq)
		default: // NEW
			bySeq[c.Seq] = c
			order = append(order, c.Seq)
		}
	}

	var out []Line
	for _, seq := range order {
		if l, ok := bySeq[seq]; ok && l.Seq == seq {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].From.Before(out[j].From) })
	return out
}
