package rv32

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Disassemble renders the instruction stream as one line per word. The
// output is stable; snapshot tests rely on it.
func Disassemble(code []byte) string {
	var sb strings.Builder
	for pc := 0; pc+4 <= len(code); pc += 4 {
		w := binary.LittleEndian.Uint32(code[pc:])
		fmt.Fprintf(&sb, "%6x:  %08x  %s\n", pc, w, decode(w, pc))
	}
	return sb.String()
}

// DisassembleFunc renders one function of a module with its name as a
// leading label.
func (m *Module) DisassembleFunc(name string) (string, error) {
	info, ok := m.Funcs[name]
	if !ok {
		return "", fmt.Errorf("rv32: no function %q", name)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:\n", name)
	sb.WriteString(Disassemble(m.Code[info.Offset : info.Offset+info.Size]))
	return sb.String(), nil
}

func decode(w uint32, pc int) string {
	opcode := w & 0x7F
	rd := int(w >> 7 & 0x1F)
	funct3 := w >> 12 & 0x7
	rs1 := int(w >> 15 & 0x1F)
	rs2 := int(w >> 20 & 0x1F)
	funct7 := w >> 25

	switch opcode {
	case opLUI:
		return fmt.Sprintf("lui %s, 0x%x", RegName(rd), w>>12)

	case opJAL:
		off := decodeJ(w)
		return fmt.Sprintf("jal %s, 0x%x", RegName(rd), pc+int(off))

	case opJALR:
		return fmt.Sprintf("jalr %s, %d(%s)", RegName(rd), immI(w), RegName(rs1))

	case opBranch:
		name := [8]string{"beq", "bne", "", "", "blt", "bge", "bltu", "bgeu"}[funct3]
		if name == "" {
			break
		}
		off := decodeB(w)
		return fmt.Sprintf("%s %s, %s, 0x%x", name, RegName(rs1), RegName(rs2), pc+int(off))

	case opLoad:
		if funct3 == 0x2 {
			return fmt.Sprintf("lw %s, %d(%s)", RegName(rd), immI(w), RegName(rs1))
		}

	case opStore:
		if funct3 == 0x2 {
			return fmt.Sprintf("sw %s, %d(%s)", RegName(rs2), immS(w), RegName(rs1))
		}

	case opImm:
		switch funct3 {
		case 0x0:
			return fmt.Sprintf("addi %s, %s, %d", RegName(rd), RegName(rs1), immI(w))
		case 0x2:
			return fmt.Sprintf("slti %s, %s, %d", RegName(rd), RegName(rs1), immI(w))
		case 0x3:
			return fmt.Sprintf("sltiu %s, %s, %d", RegName(rd), RegName(rs1), immI(w))
		case 0x4:
			return fmt.Sprintf("xori %s, %s, %d", RegName(rd), RegName(rs1), immI(w))
		case 0x6:
			return fmt.Sprintf("ori %s, %s, %d", RegName(rd), RegName(rs1), immI(w))
		case 0x7:
			return fmt.Sprintf("andi %s, %s, %d", RegName(rd), RegName(rs1), immI(w))
		case 0x1:
			return fmt.Sprintf("slli %s, %s, %d", RegName(rd), RegName(rs1), rs2)
		case 0x5:
			if funct7 == 0x20 {
				return fmt.Sprintf("srai %s, %s, %d", RegName(rd), RegName(rs1), rs2)
			}
			return fmt.Sprintf("srli %s, %s, %d", RegName(rd), RegName(rs1), rs2)
		}

	case opReg:
		var name string
		if funct7 == 0x01 {
			name = [8]string{"mul", "mulh", "mulhsu", "mulhu", "div", "divu", "rem", "remu"}[funct3]
		} else {
			switch {
			case funct3 == 0x0 && funct7 == 0x00:
				name = "add"
			case funct3 == 0x0 && funct7 == 0x20:
				name = "sub"
			case funct3 == 0x1:
				name = "sll"
			case funct3 == 0x2:
				name = "slt"
			case funct3 == 0x3:
				name = "sltu"
			case funct3 == 0x4:
				name = "xor"
			case funct3 == 0x5 && funct7 == 0x20:
				name = "sra"
			case funct3 == 0x5:
				name = "srl"
			case funct3 == 0x6:
				name = "or"
			case funct3 == 0x7:
				name = "and"
			}
		}
		if name != "" {
			return fmt.Sprintf("%s %s, %s, %s", name, RegName(rd), RegName(rs1), RegName(rs2))
		}

	case opSystem:
		if w == 0x00000073 {
			return "ecall"
		}
	}
	return fmt.Sprintf(".word 0x%08x", w)
}

func immI(w uint32) int32 { return int32(w) >> 20 }

func immS(w uint32) int32 {
	return int32(w)>>25<<5 | int32(w>>7&0x1F)
}

func decodeB(w uint32) int32 {
	imm := int32(w)>>31<<12 | int32(w>>7&1)<<11 | int32(w>>25&0x3F)<<5 | int32(w>>8&0xF)<<1
	return imm
}

func decodeJ(w uint32) int32 {
	imm := int32(w)>>31<<20 | int32(w>>12&0xFF)<<12 | int32(w>>20&1)<<11 | int32(w>>21&0x3FF)<<1
	return imm
}
