package cpu

// Addressing modes, matching the original's op_mod enum order exactly
// (values matter only for table construction below, not for correctness
// elsewhere).
const (
	modNUL uint8 = iota // implied
	modIMM               // #
	modACC               // A
	modX                 // X register as operand
	modY                 // Y register as operand
	modZ                 // zp
	modZX                // zp,x
	modZY                // zp,y
	modZI                // (zp)
	modZXI               // (zp,x)
	modZIY               // (zp),y
	modA                 // a
	modAX                // a,x
	modAY                // a,y
	modR                 // relative
)

const storeBit = 0x80

// opMode gives each opcode's addressing mode in the low 7 bits; the top
// bit marks store-class instructions (STA/STX/STY/STZ), which compute
// their target address but never read through it — matching the S()
// entries in the original's op_mod table, so those opcodes never trip
// the device's read-side I/O effects.
var opMode = [256]uint8{
	0x00: modNUL, 0x01: modZXI, 0x02: modNUL, 0x03: modNUL,
	0x04: modZ, 0x05: modZ, 0x06: modZ, 0x07: modZ,
	0x08: modNUL, 0x09: modIMM, 0x0a: modACC, 0x0b: modNUL,
	0x0c: modA, 0x0d: modA, 0x0e: modA, 0x0f: modZ,

	0x10: modR, 0x11: modZIY, 0x12: modZI, 0x13: modNUL,
	0x14: modZ, 0x15: modZX, 0x16: modZX, 0x17: modZ,
	0x18: modNUL, 0x19: modAY, 0x1a: modACC, 0x1b: modNUL,
	0x1c: modA, 0x1d: modAX, 0x1e: modAX, 0x1f: modZ,

	0x20: modIMM, 0x21: modZXI, 0x22: modNUL, 0x23: modNUL,
	0x24: modZ, 0x25: modZ, 0x26: modZ, 0x27: modZ,
	0x28: modNUL, 0x29: modIMM, 0x2a: modACC, 0x2b: modNUL,
	0x2c: modA, 0x2d: modA, 0x2e: modA, 0x2f: modZ,

	0x30: modR, 0x31: modZIY, 0x32: modZI, 0x33: modNUL,
	0x34: modZ, 0x35: modZX, 0x36: modZX, 0x37: modZ,
	0x38: modNUL, 0x39: modAY, 0x3a: modACC, 0x3b: modNUL,
	0x3c: modAX, 0x3d: modAX, 0x3e: modAX, 0x3f: modZ,

	0x40: modNUL, 0x41: modZXI, 0x42: modNUL, 0x43: modNUL,
	0x44: modNUL, 0x45: modZ, 0x46: modZ, 0x47: modZ,
	0x48: modACC, 0x49: modIMM, 0x4a: modACC, 0x4b: modNUL,
	0x4c: modIMM, 0x4d: modA, 0x4e: modA, 0x4f: modZ,

	0x50: modR, 0x51: modZIY, 0x52: modZI, 0x53: modNUL,
	0x54: modNUL, 0x55: modZX, 0x56: modZX, 0x57: modZ,
	0x58: modNUL, 0x59: modAY, 0x5a: modY, 0x5b: modNUL,
	0x5c: modNUL, 0x5d: modAX, 0x5e: modAX, 0x5f: modZ,

	0x60: modNUL, 0x61: modZXI, 0x62: modNUL, 0x63: modNUL,
	0x64: modZ | storeBit, 0x65: modZ, 0x66: modZ, 0x67: modZ,
	0x68: modACC, 0x69: modIMM, 0x6a: modACC, 0x6b: modNUL,
	0x6c: modA, 0x6d: modA, 0x6e: modA, 0x6f: modZ,

	0x70: modR, 0x71: modZIY, 0x72: modZI, 0x73: modNUL,
	0x74: modZX | storeBit, 0x75: modZX, 0x76: modZX, 0x77: modZ,
	0x78: modNUL, 0x79: modAY, 0x7a: modY, 0x7b: modNUL,
	0x7c: modAX, 0x7d: modAX, 0x7e: modAX, 0x7f: modZ,

	0x80: modR, 0x81: modZXI | storeBit, 0x82: modNUL, 0x83: modNUL,
	0x84: modZ | storeBit, 0x85: modZ | storeBit, 0x86: modZ | storeBit, 0x87: modZ,
	0x88: modY, 0x89: modIMM, 0x8a: modNUL, 0x8b: modNUL,
	0x8c: modA | storeBit, 0x8d: modA | storeBit, 0x8e: modA | storeBit, 0x8f: modZ,

	0x90: modR, 0x91: modZIY | storeBit, 0x92: modZI | storeBit, 0x93: modNUL,
	0x94: modZX | storeBit, 0x95: modZX | storeBit, 0x96: modZY | storeBit, 0x97: modZ,
	0x98: modNUL, 0x99: modAY | storeBit, 0x9a: modNUL, 0x9b: modNUL,
	0x9c: modA | storeBit, 0x9d: modAX | storeBit, 0x9e: modAX | storeBit, 0x9f: modZ,

	0xa0: modIMM, 0xa1: modZXI, 0xa2: modIMM, 0xa3: modNUL,
	0xa4: modZ, 0xa5: modZ, 0xa6: modZ, 0xa7: modZ,
	0xa8: modNUL, 0xa9: modIMM, 0xaa: modNUL, 0xab: modNUL,
	0xac: modA, 0xad: modA, 0xae: modA, 0xaf: modZ,

	0xb0: modR, 0xb1: modZIY, 0xb2: modZI, 0xb3: modNUL,
	0xb4: modZX, 0xb5: modZX, 0xb6: modZY, 0xb7: modZ,
	0xb8: modNUL, 0xb9: modAY, 0xba: modNUL, 0xbb: modNUL,
	0xbc: modAX, 0xbd: modAX, 0xbe: modAY, 0xbf: modZ,

	0xc0: modIMM, 0xc1: modZXI, 0xc2: modNUL, 0xc3: modNUL,
	0xc4: modZ, 0xc5: modZ, 0xc6: modZ, 0xc7: modZ,
	0xc8: modY, 0xc9: modIMM, 0xca: modX, 0xcb: modNUL,
	0xcc: modA, 0xcd: modA, 0xce: modA, 0xcf: modZ,

	0xd0: modR, 0xd1: modZIY, 0xd2: modZI, 0xd3: modNUL,
	0xd4: modNUL, 0xd5: modZX, 0xd6: modZX, 0xd7: modZ,
	0xd8: modNUL, 0xd9: modAY, 0xda: modX, 0xdb: modNUL,
	0xdc: modNUL, 0xdd: modAX, 0xde: modAX, 0xdf: modZ,

	0xe0: modIMM, 0xe1: modZXI, 0xe2: modNUL, 0xe3: modNUL,
	0xe4: modZ, 0xe5: modZ, 0xe6: modZ, 0xe7: modZ,
	0xe8: modX, 0xe9: modIMM, 0xea: modNUL, 0xeb: modNUL,
	0xec: modA, 0xed: modA, 0xee: modA, 0xef: modZ,

	0xf0: modR, 0xf1: modZIY, 0xf2: modZI, 0xf3: modNUL,
	0xf4: modNUL, 0xf5: modZX, 0xf6: modZX, 0xf7: modZ,
	0xf8: modNUL, 0xf9: modAY, 0xfa: modX, 0xfb: modNUL,
	0xfc: modNUL, 0xfd: modAX, 0xfe: modAX, 0xff: modZ,
}
