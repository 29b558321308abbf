package stock

// Movement is a drafted document line as typed into a form.
type Movement struct {
	ProductID int64
	Quantity  Quantity
}

// MovementLines turns drafted lines into stock lines moving in dir, reading
// availability from cat. Unknown products get an unset availability.
func MovementLines(cat Catalog, dir Direction, drafts []Movement) []Line {
	lines := make([]Line, 0, len(drafts))
	for _, d := range drafts {
		line := Line{ProductID: d.ProductID, Proposed: d.Quantity, Direction: dir}
		fill(&line, cat)
		lines = append(lines, line)
	}
	return lines
}

// AdjustmentLine builds the line for a stock count. The direction follows the
// sign of counted minus system; it stays AdjustDown while either side is
// missing so the check applies as soon as both are typed.
func AdjustmentLine(cat Catalog, productID int64, system, counted Quantity) Line {
	line := Line{ProductID: productID, System: system, Counted: counted, Direction: AdjustDown}
	if system.Set && counted.Set {
		diff := counted.Value.Sub(system.Value)
		line.Proposed = QtyOf(diff.Abs())
		if !diff.IsNegative() {
			line.Direction = AdjustUp
		}
	}
	fill(&line, cat)
	return line
}

func fill(line *Line, cat Catalog) {
	if cat == nil {
		return
	}
	if level, ok := cat.Lookup(line.ProductID); ok {
		line.Available = level.Available
		line.Unit = level.Unit
	}
}
