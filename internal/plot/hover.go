package plot

// Hover tracks the single hovered cluster of a view. The zero value is idle.
type Hover struct {
	cluster int
	active  bool
}

// Enter hovers cluster id, replacing any current hover.
func (h *Hover) Enter(id int) {
	h.cluster = id
	h.active = true
}

// Leave returns to idle.
func (h *Hover) Leave() {
	h.cluster = 0
	h.active = false
}

// Current returns the hovered cluster, if any.
func (h Hover) Current() (int, bool) {
	return h.cluster, h.active
}

// Highlighted reports whether surfaces of cluster id should be emphasized.
func (h Hover) Highlighted(id int) bool {
	return h.active && h.cluster == id
}

// HoverOn returns a Hover already hovering id.
func HoverOn(id int) Hover {
	return Hover{cluster: id, active: true}
}
