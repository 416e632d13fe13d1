// Package emu interprets RV32IM machine code produced by the rv32
// backend. It models flat memory with the code at a fixed base and the
// stack at the top, intercepts the builtin call window, and turns ecall
// into a Go error carrying the trap code. The interpreter favors
// obviousness over speed; it exists to execute tests, not frames.
package emu

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/fxc/builtin"
	"github.com/gogpu/fxc/ir"
	"github.com/gogpu/fxc/rv32"
)

const (
	// CodeBase is where Module.Code is mapped.
	CodeBase = 0x0000_1000
	// MemSize is the flat RAM size; the stack starts at the top.
	MemSize = 1 << 20
	// retSentinel is the return address of the outermost frame;
	// reaching it ends execution.
	retSentinel uint32 = 0xFFFF_0000
	// DefaultStepLimit bounds one Call. Shaders that busy-loop longer
	// than this are broken, not slow.
	DefaultStepLimit = 50_000_000
)

// TrapError reports a runtime trap raised by generated code or a
// numeric routine.
type TrapError struct {
	Code int
	PC   uint32
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("trap %d (%s) at pc 0x%x", e.Code, ir.TrapName(e.Code), e.PC)
}

// ErrStepLimit reports that execution did not finish within the step
// budget.
var ErrStepLimit = errors.New("emu: step limit exceeded")

// Machine executes one module. It is not safe for concurrent use.
type Machine struct {
	mod *rv32.Module
	reg *builtin.Registry
	mem []byte
	x   [32]int32
	pc  uint32

	// StepLimit bounds the number of instructions per Call.
	StepLimit int
}

// New maps the module into a fresh machine.
func New(mod *rv32.Module, reg *builtin.Registry) *Machine {
	m := &Machine{
		mod:       mod,
		reg:       reg,
		mem:       make([]byte, MemSize),
		StepLimit: DefaultStepLimit,
	}
	copy(m.mem[CodeBase:], mod.Code)
	return m
}

// Call runs a function by name with raw 32-bit arguments (Q16.16 bit
// patterns for floats) and returns the raw result.
func (m *Machine) Call(name string, args ...int32) (int32, error) {
	info, ok := m.mod.Funcs[name]
	if !ok {
		return 0, fmt.Errorf("emu: no function %q", name)
	}
	if len(args) != info.NumArgs {
		return 0, fmt.Errorf("emu: %q takes %d arguments, got %d", name, info.NumArgs, len(args))
	}

	m.x = [32]int32{}
	m.x[rv32.RegSP] = int32(MemSize - 16)
	ra := retSentinel
	m.x[rv32.RegRA] = int32(ra)
	for i, a := range args {
		m.x[rv32.RegA0+i] = a
	}
	m.pc = CodeBase + uint32(info.Offset)

	for steps := 0; ; steps++ {
		if steps >= m.StepLimit {
			return 0, ErrStepLimit
		}
		if m.pc == retSentinel {
			return m.x[rv32.RegA0], nil
		}
		if id, ok := m.reg.FromAddress(m.pc); ok {
			if err := m.dispatchBuiltin(id); err != nil {
				return 0, err
			}
			continue
		}
		if err := m.step(); err != nil {
			return 0, err
		}
	}
}

// dispatchBuiltin services a call that landed in the routine window.
// Traps raised by a routine report the jalr that entered the window,
// not the window address itself; ra still points just past it.
func (m *Machine) dispatchBuiltin(id builtin.ID) error {
	site := uint32(m.x[rv32.RegRA]) - 4
	sig, ok := m.reg.Signature(id)
	if !ok {
		return &TrapError{Code: ir.TrapIllegal, PC: site}
	}
	args := make([]int32, sig.Params)
	for i := range args {
		args[i] = m.x[rv32.RegA0+i]
	}
	res, err := m.reg.Invoke(id, args)
	switch {
	case errors.Is(err, builtin.ErrDomain):
		return &TrapError{Code: ir.TrapDomain, PC: site}
	case errors.Is(err, builtin.ErrDivZero):
		return &TrapError{Code: ir.TrapDivZero, PC: site}
	case err != nil:
		return fmt.Errorf("emu: routine %d: %w", id, err)
	}
	m.setReg(rv32.RegA0, res)
	m.pc = uint32(m.x[rv32.RegRA])
	return nil
}

func (m *Machine) setReg(r int, v int32) {
	if r != 0 {
		m.x[r] = v
	}
}

func (m *Machine) load32(addr uint32) (int32, error) {
	if addr%4 != 0 || addr+4 > MemSize {
		return 0, fmt.Errorf("emu: bad load address 0x%x at pc 0x%x", addr, m.pc)
	}
	return int32(binary.LittleEndian.Uint32(m.mem[addr:])), nil
}

func (m *Machine) store32(addr uint32, v int32) error {
	if addr%4 != 0 || addr+4 > MemSize {
		return fmt.Errorf("emu: bad store address 0x%x at pc 0x%x", addr, m.pc)
	}
	binary.LittleEndian.PutUint32(m.mem[addr:], uint32(v))
	return nil
}

func (m *Machine) step() error {
	w, err := m.fetch()
	if err != nil {
		return err
	}

	opcode := w & 0x7F
	rd := int(w >> 7 & 0x1F)
	funct3 := w >> 12 & 0x7
	rs1 := m.x[w>>15&0x1F]
	rs2 := m.x[w>>20&0x1F]
	funct7 := w >> 25
	next := m.pc + 4

	switch opcode {
	case 0x37: // lui
		m.setReg(rd, int32(w&0xFFFFF000))

	case 0x17: // auipc
		m.setReg(rd, int32(m.pc+w&0xFFFFF000))

	case 0x6F: // jal
		m.setReg(rd, int32(next))
		next = m.pc + uint32(decodeJImm(w))

	case 0x67: // jalr
		target := uint32(rs1+immI(w)) &^ 1
		m.setReg(rd, int32(next))
		next = target

	case 0x63: // branches
		taken := false
		switch funct3 {
		case 0x0:
			taken = rs1 == rs2
		case 0x1:
			taken = rs1 != rs2
		case 0x4:
			taken = rs1 < rs2
		case 0x5:
			taken = rs1 >= rs2
		case 0x6:
			taken = uint32(rs1) < uint32(rs2)
		case 0x7:
			taken = uint32(rs1) >= uint32(rs2)
		default:
			return &TrapError{Code: ir.TrapIllegal, PC: m.pc}
		}
		if taken {
			next = m.pc + uint32(decodeBImm(w))
		}

	case 0x03: // loads
		if funct3 != 0x2 {
			return &TrapError{Code: ir.TrapIllegal, PC: m.pc}
		}
		v, err := m.load32(uint32(rs1 + immI(w)))
		if err != nil {
			return err
		}
		m.setReg(rd, v)

	case 0x23: // stores
		if funct3 != 0x2 {
			return &TrapError{Code: ir.TrapIllegal, PC: m.pc}
		}
		if err := m.store32(uint32(rs1+immS(w)), rs2); err != nil {
			return err
		}

	case 0x13: // ALU immediate
		imm := immI(w)
		switch funct3 {
		case 0x0:
			m.setReg(rd, rs1+imm)
		case 0x2:
			m.setReg(rd, boolToInt(rs1 < imm))
		case 0x3:
			m.setReg(rd, boolToInt(uint32(rs1) < uint32(imm)))
		case 0x4:
			m.setReg(rd, rs1^imm)
		case 0x6:
			m.setReg(rd, rs1|imm)
		case 0x7:
			m.setReg(rd, rs1&imm)
		case 0x1:
			m.setReg(rd, rs1<<(uint32(imm)&31))
		case 0x5:
			if funct7 == 0x20 {
				m.setReg(rd, rs1>>(uint32(imm)&31))
			} else {
				m.setReg(rd, int32(uint32(rs1)>>(uint32(imm)&31)))
			}
		}

	case 0x33: // ALU register
		v, err := m.alu(funct3, funct7, rs1, rs2)
		if err != nil {
			return err
		}
		m.setReg(rd, v)

	case 0x73: // ecall
		if w != 0x00000073 {
			return &TrapError{Code: ir.TrapIllegal, PC: m.pc}
		}
		return &TrapError{Code: int(m.x[rv32.RegA7]), PC: m.pc}

	default:
		return &TrapError{Code: ir.TrapIllegal, PC: m.pc}
	}

	m.pc = next
	return nil
}

func (m *Machine) fetch() (uint32, error) {
	if m.pc%4 != 0 || m.pc+4 > MemSize {
		return 0, &TrapError{Code: ir.TrapIllegal, PC: m.pc}
	}
	return binary.LittleEndian.Uint32(m.mem[m.pc:]), nil
}

func (m *Machine) alu(funct3, funct7 uint32, a, b int32) (int32, error) {
	if funct7 == 0x01 { // M extension
		switch funct3 {
		case 0x0:
			return a * b, nil
		case 0x1:
			return int32(int64(a) * int64(b) >> 32), nil
		case 0x2:
			return int32(int64(a) * int64(uint32(b)) >> 32), nil
		case 0x3:
			return int32(uint64(uint32(a)) * uint64(uint32(b)) >> 32), nil
		case 0x4: // div: RV defines x/0 = -1, overflow = dividend
			switch {
			case b == 0:
				return -1, nil
			case a == -1<<31 && b == -1:
				return a, nil
			default:
				return a / b, nil
			}
		case 0x5:
			if b == 0 {
				return -1, nil
			}
			return int32(uint32(a) / uint32(b)), nil
		case 0x6:
			switch {
			case b == 0:
				return a, nil
			case a == -1<<31 && b == -1:
				return 0, nil
			default:
				return a % b, nil
			}
		case 0x7:
			if b == 0 {
				return a, nil
			}
			return int32(uint32(a) % uint32(b)), nil
		}
		return 0, &TrapError{Code: ir.TrapIllegal, PC: m.pc}
	}

	switch {
	case funct3 == 0x0 && funct7 == 0x00:
		return a + b, nil
	case funct3 == 0x0 && funct7 == 0x20:
		return a - b, nil
	case funct3 == 0x1:
		return a << (uint32(b) & 31), nil
	case funct3 == 0x2:
		return boolToInt(a < b), nil
	case funct3 == 0x3:
		return boolToInt(uint32(a) < uint32(b)), nil
	case funct3 == 0x4:
		return a ^ b, nil
	case funct3 == 0x5 && funct7 == 0x20:
		return a >> (uint32(b) & 31), nil
	case funct3 == 0x5 && funct7 == 0x00:
		return int32(uint32(a) >> (uint32(b) & 31)), nil
	case funct3 == 0x6:
		return a | b, nil
	case funct3 == 0x7:
		return a & b, nil
	}
	return 0, &TrapError{Code: ir.TrapIllegal, PC: m.pc}
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func immI(w uint32) int32 { return int32(w) >> 20 }

func immS(w uint32) int32 { return int32(w)>>25<<5 | int32(w>>7&0x1F) }

func decodeBImm(w uint32) int32 {
	return int32(w)>>31<<12 | int32(w>>7&1)<<11 | int32(w>>25&0x3F)<<5 | int32(w>>8&0xF)<<1
}

func decodeJImm(w uint32) int32 {
	return int32(w)>>31<<20 | int32(w>>12&0xFF)<<12 | int32(w>>20&1)<<11 | int32(w>>21&0x3FF)<<1
}
