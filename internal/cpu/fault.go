package cpu

import "fmt"

// CoreFault reports a fatal CPU condition recovered from a panic inside
// Step: an undefined opcode reaching execute/executeCB. The instruction
// that triggered the fault never completed and the CPU's register state
// is left exactly as it was at the start of that Step.
type CoreFault struct {
	PC     uint16
	Opcode uint8
}

func (f *CoreFault) Error() string {
	return fmt.Sprintf("cpu: undefined opcode 0x%02X at PC 0x%04X", f.Opcode, f.PC)
}

// Fault returns the fault recorded by the most recent Step call, or nil
// if that Step completed normally. A CPU that has faulted keeps returning
// the same fault from Fault until the caller decides what to do with it;
// Step itself does not clear or reset any state after faulting.
func (c *CPU) Fault() *CoreFault {
	return c.fault
}
