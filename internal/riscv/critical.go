package riscv

// State is the saved global interrupt enable of a critical section.
type State uint32

// DisableInterrupts masks all interrupts on h and returns the previous state.
// Foreground code uses it around any access to state the trap handler owns.
func DisableInterrupts(h Hart) State {
	prev := h.ReadCSR(Mstatus) & MstatusMIE
	h.ClearCSR(Mstatus, MstatusMIE)
	return State(prev)
}

// RestoreInterrupts re-enables interrupts if they were enabled when state was
// captured.
func RestoreInterrupts(h Hart, state State) {
	if uint32(state)&MstatusMIE != 0 {
		h.SetCSR(Mstatus, MstatusMIE)
	}
}
