package command

// Metadata is the bag of bookkeeping fields carried by every command node:
// plate id, step name, sub-part name, batch id, and the unique id stamped
// by AssignIDs. Metadata merges by concatenation for strings and max for
// numbers, the way the teacher's stage/execution context accumulates
// labels as it descends a tree.
type Metadata struct {
	PlateID string
	Step    string
	SubPart string
	BatchID int
	ID      string
}

// Merge combines m with other: string fields concatenate (joined by "; "
// when both sides are non-empty, otherwise whichever side is non-empty
// wins), BatchID takes the max, and ID is overridden by other's ID when
// set (the most specific assignment wins).
func (m Metadata) Merge(other Metadata) Metadata {
	out := Metadata{
		PlateID: mergeString(m.PlateID, other.PlateID),
		Step:    mergeString(m.Step, other.Step),
		SubPart: mergeString(m.SubPart, other.SubPart),
		BatchID: maxInt(m.BatchID, other.BatchID),
		ID:      m.ID,
	}
	if other.ID != "" {
		out.ID = other.ID
	}
	return out
}

func mergeString(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	case a == b:
		return a
	default:
		return a + "; " + b
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
