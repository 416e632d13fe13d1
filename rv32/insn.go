package rv32

// RV32IM instruction encoding. Only the handful of shapes the emitter
// needs; encoders panic on out-of-range immediates since those are
// emitter bugs, not user errors.

// Registers, by ABI name.
const (
	RegZero = 0
	RegRA   = 1
	RegSP   = 2
	RegT0   = 5
	RegT1   = 6
	RegT2   = 7
	RegA0   = 10
	RegA7   = 17
	RegT3   = 28
	RegT4   = 29
	RegT5   = 30
	RegT6   = 31
)

var regNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// RegName returns the ABI name of a register number.
func RegName(r int) string {
	if r >= 0 && r < 32 {
		return regNames[r]
	}
	return "x?"
}

// Base opcodes.
const (
	opLoad   = 0x03
	opImm    = 0x13
	opStore  = 0x23
	opReg    = 0x33
	opLUI    = 0x37
	opBranch = 0x63
	opJALR   = 0x67
	opJAL    = 0x6F
	opSystem = 0x73
)

func fitsImm12(v int32) bool { return v >= -2048 && v < 2048 }

func encR(funct7, rs2, rs1, funct3, rd, opcode uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encI(imm int32, rs1, funct3, rd, opcode uint32) uint32 {
	if !fitsImm12(imm) {
		panic("rv32: I-immediate out of range")
	}
	return uint32(imm)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encS(imm int32, rs2, rs1, funct3 uint32) uint32 {
	if !fitsImm12(imm) {
		panic("rv32: S-immediate out of range")
	}
	u := uint32(imm)
	return (u>>5&0x7F)<<25 | rs2<<20 | rs1<<15 | funct3<<12 | (u&0x1F)<<7 | opStore
}

func encB(imm int32, rs2, rs1, funct3 uint32) uint32 {
	if imm < -4096 || imm >= 4096 || imm&1 != 0 {
		panic("rv32: branch offset out of range")
	}
	u := uint32(imm)
	return (u>>12&1)<<31 | (u>>5&0x3F)<<25 | rs2<<20 | rs1<<15 |
		funct3<<12 | (u>>1&0xF)<<8 | (u>>11&1)<<7 | opBranch
}

func encU(imm uint32, rd, opcode uint32) uint32 {
	return imm&0xFFFFF000 | rd<<7 | opcode
}

func encJ(imm int32, rd uint32) uint32 {
	if imm < -(1<<20) || imm >= 1<<20 || imm&1 != 0 {
		panic("rv32: jump offset out of range")
	}
	u := uint32(imm)
	return (u>>20&1)<<31 | (u>>1&0x3FF)<<21 | (u>>11&1)<<20 | (u>>12&0xFF)<<12 | rd<<7 | opJAL
}

// ALU register-register.
func insnAdd(rd, rs1, rs2 int) uint32  { return encR(0x00, uint32(rs2), uint32(rs1), 0x0, uint32(rd), opReg) }
func insnSub(rd, rs1, rs2 int) uint32  { return encR(0x20, uint32(rs2), uint32(rs1), 0x0, uint32(rd), opReg) }
func insnSll(rd, rs1, rs2 int) uint32  { return encR(0x00, uint32(rs2), uint32(rs1), 0x1, uint32(rd), opReg) }
func insnSlt(rd, rs1, rs2 int) uint32  { return encR(0x00, uint32(rs2), uint32(rs1), 0x2, uint32(rd), opReg) }
func insnSltu(rd, rs1, rs2 int) uint32 { return encR(0x00, uint32(rs2), uint32(rs1), 0x3, uint32(rd), opReg) }
func insnXor(rd, rs1, rs2 int) uint32  { return encR(0x00, uint32(rs2), uint32(rs1), 0x4, uint32(rd), opReg) }
func insnSrl(rd, rs1, rs2 int) uint32  { return encR(0x00, uint32(rs2), uint32(rs1), 0x5, uint32(rd), opReg) }
func insnSra(rd, rs1, rs2 int) uint32  { return encR(0x20, uint32(rs2), uint32(rs1), 0x5, uint32(rd), opReg) }
func insnOr(rd, rs1, rs2 int) uint32   { return encR(0x00, uint32(rs2), uint32(rs1), 0x6, uint32(rd), opReg) }
func insnAnd(rd, rs1, rs2 int) uint32  { return encR(0x00, uint32(rs2), uint32(rs1), 0x7, uint32(rd), opReg) }

// M extension.
func insnMul(rd, rs1, rs2 int) uint32  { return encR(0x01, uint32(rs2), uint32(rs1), 0x0, uint32(rd), opReg) }
func insnMulh(rd, rs1, rs2 int) uint32 { return encR(0x01, uint32(rs2), uint32(rs1), 0x1, uint32(rd), opReg) }
func insnDiv(rd, rs1, rs2 int) uint32  { return encR(0x01, uint32(rs2), uint32(rs1), 0x4, uint32(rd), opReg) }
func insnDivu(rd, rs1, rs2 int) uint32 { return encR(0x01, uint32(rs2), uint32(rs1), 0x5, uint32(rd), opReg) }
func insnRem(rd, rs1, rs2 int) uint32  { return encR(0x01, uint32(rs2), uint32(rs1), 0x6, uint32(rd), opReg) }
func insnRemu(rd, rs1, rs2 int) uint32 { return encR(0x01, uint32(rs2), uint32(rs1), 0x7, uint32(rd), opReg) }

// ALU immediate.
func insnAddi(rd, rs1 int, imm int32) uint32 { return encI(imm, uint32(rs1), 0x0, uint32(rd), opImm) }
func insnXori(rd, rs1 int, imm int32) uint32 { return encI(imm, uint32(rs1), 0x4, uint32(rd), opImm) }
func insnOri(rd, rs1 int, imm int32) uint32  { return encI(imm, uint32(rs1), 0x6, uint32(rd), opImm) }
func insnAndi(rd, rs1 int, imm int32) uint32 { return encI(imm, uint32(rs1), 0x7, uint32(rd), opImm) }
func insnSlti(rd, rs1 int, imm int32) uint32 { return encI(imm, uint32(rs1), 0x2, uint32(rd), opImm) }
func insnSltiu(rd, rs1 int, imm int32) uint32 {
	return encI(imm, uint32(rs1), 0x3, uint32(rd), opImm)
}

func insnSlli(rd, rs1, shamt int) uint32 {
	return encR(0x00, uint32(shamt), uint32(rs1), 0x1, uint32(rd), opImm)
}
func insnSrli(rd, rs1, shamt int) uint32 {
	return encR(0x00, uint32(shamt), uint32(rs1), 0x5, uint32(rd), opImm)
}
func insnSrai(rd, rs1, shamt int) uint32 {
	return encR(0x20, uint32(shamt), uint32(rs1), 0x5, uint32(rd), opImm)
}

// Memory.
func insnLw(rd, rs1 int, imm int32) uint32 { return encI(imm, uint32(rs1), 0x2, uint32(rd), opLoad) }
func insnSw(rs2, rs1 int, imm int32) uint32 {
	return encS(imm, uint32(rs2), uint32(rs1), 0x2)
}

// Control.
func insnBeq(rs1, rs2 int, off int32) uint32  { return encB(off, uint32(rs2), uint32(rs1), 0x0) }
func insnBne(rs1, rs2 int, off int32) uint32  { return encB(off, uint32(rs2), uint32(rs1), 0x1) }
func insnBlt(rs1, rs2 int, off int32) uint32  { return encB(off, uint32(rs2), uint32(rs1), 0x4) }
func insnBge(rs1, rs2 int, off int32) uint32  { return encB(off, uint32(rs2), uint32(rs1), 0x5) }
func insnBltu(rs1, rs2 int, off int32) uint32 { return encB(off, uint32(rs2), uint32(rs1), 0x6) }
func insnBgeu(rs1, rs2 int, off int32) uint32 { return encB(off, uint32(rs2), uint32(rs1), 0x7) }

func insnJal(rd int, off int32) uint32 { return encJ(off, uint32(rd)) }
func insnJalr(rd, rs1 int, imm int32) uint32 {
	return encI(imm, uint32(rs1), 0x0, uint32(rd), opJALR)
}

func insnLui(rd int, imm uint32) uint32 { return encU(imm, uint32(rd), opLUI) }
func insnEcall() uint32                 { return 0x00000073 }
