package cart

// Page is a zero-based page cursor.
type Page struct {
	Value int
}

// IsFirstPage reports whether the cursor is on page zero.
func (p Page) IsFirstPage() bool { return p.Value == 0 }

// MoveToNextPage returns the following page.
func (p Page) MoveToNextPage() Page { return Page{Value: p.Value + 1} }

// MoveToPreviousPage returns the preceding page; on the first page it is a
// no-op.
func (p Page) MoveToPreviousPage() Page {
	if p.IsFirstPage() {
		return p
	}
	return Page{Value: p.Value - 1}
}

// Number is the 1-based page number shown to users.
func (p Page) Number() int { return p.Value + 1 }

// Start returns the index of the first line on this page.
func (p Page) Start(size int) int { return p.Value * size }
