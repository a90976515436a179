package lazy

import "errors"

// ErrOwnedElsewhere is returned by Add/Insert when the element already
// belongs to a different collection (§4.F, §8's owned-collection
// invariant).
var ErrOwnedElsewhere = errors.New("lazy: element already owned by a different collection")

// Member is the capability an OwnedCollection element needs: a way to
// read and write its current owner.
type Member[Owner any] interface {
	comparable
	Owner() Owner
	SetOwner(Owner)
}

// OwnedCollection is an ordered sequence that keeps every element's
// owner back-reference synchronized with collection membership: adding
// e sets e's owner to the collection's owner, removing clears it, and an
// element already owned elsewhere cannot be added until removed from
// its current collection (§4.F).
type OwnedCollection[Owner comparable, Elem Member[Owner]] struct {
	owner Owner
	items []Elem
}

// NewOwnedCollection creates an empty collection whose elements, once
// added, report owner as their Owner().
func NewOwnedCollection[Owner comparable, Elem Member[Owner]](owner Owner) *OwnedCollection[Owner, Elem] {
	return &OwnedCollection[Owner, Elem]{owner: owner}
}

// Len returns the number of elements.
func (c *OwnedCollection[Owner, Elem]) Len() int { return len(c.items) }

// At returns the element at index i, in table/insertion order.
func (c *OwnedCollection[Owner, Elem]) At(i int) Elem { return c.items[i] }

// Items returns a copy of the collection's elements in order.
func (c *OwnedCollection[Owner, Elem]) Items() []Elem {
	out := make([]Elem, len(c.items))
	copy(out, c.items)
	return out
}

// Add appends e, setting its owner to this collection's owner. Returns
// ErrOwnedElsewhere if e already has a different non-zero owner.
func (c *OwnedCollection[Owner, Elem]) Add(e Elem) error {
	var zero Owner
	if e.Owner() != zero && e.Owner() != c.owner {
		return ErrOwnedElsewhere
	}
	e.SetOwner(c.owner)
	c.items = append(c.items, e)
	return nil
}

// Insert places e at index, shifting later elements right.
func (c *OwnedCollection[Owner, Elem]) Insert(index int, e Elem) error {
	var zero Owner
	if e.Owner() != zero && e.Owner() != c.owner {
		return ErrOwnedElsewhere
	}
	e.SetOwner(c.owner)
	c.items = append(c.items, e)
	copy(c.items[index+1:], c.items[index:])
	c.items[index] = e
	return nil
}

// Remove clears e's owner and removes it from the collection. Reports
// whether e was found.
func (c *OwnedCollection[Owner, Elem]) Remove(e Elem) bool {
	for i, item := range c.items {
		if item == e {
			var zero Owner
			item.SetOwner(zero)
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveAt removes and returns the element at index, clearing its owner.
func (c *OwnedCollection[Owner, Elem]) RemoveAt(index int) Elem {
	e := c.items[index]
	var zero Owner
	e.SetOwner(zero)
	c.items = append(c.items[:index], c.items[index+1:]...)
	return e
}

// Clear removes every element, clearing each one's owner.
func (c *OwnedCollection[Owner, Elem]) Clear() {
	var zero Owner
	for _, e := range c.items {
		e.SetOwner(zero)
	}
	c.items = nil
}
