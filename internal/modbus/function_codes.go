package modbus

// Modbus function codes.

const (
	// Bit access
	FcReadCoils          FunctionCode = 0x01 // Read 1-2000 coils
	FcReadDiscreteInputs FunctionCode = 0x02 // Read 1-2000 discrete inputs

	// 16-bit register access
	FcReadHoldingRegisters FunctionCode = 0x03 // Read 1-125 holding registers
	FcReadInputRegisters   FunctionCode = 0x04 // Read 1-125 input registers

	// Single write
	FcWriteSingleCoil     FunctionCode = 0x05 // Write a single coil (ON/OFF)
	FcWriteSingleRegister FunctionCode = 0x06 // Write a single holding register

	// Multiple write
	FcWriteMultipleCoils     FunctionCode = 0x0F // Write 1-1968 coils
	FcWriteMultipleRegisters FunctionCode = 0x10 // Write 1-123 holding registers

	// Read-write
	FcMaskWriteRegister          FunctionCode = 0x16 // Mask write to a holding register
	FcReadWriteMultipleRegisters FunctionCode = 0x17 // Read+write in a single transaction
)

// Per-request quantity limits.
const (
	MaxReadBits           = 2000
	MaxReadRegisters      = 125
	MaxWriteCoils         = 1968
	MaxWriteRegisters     = 123
	MaxReadWriteRegisters = 121 // write half of FC 0x17
	MaxStringWriteBytes   = 228 // byteLength bound for string write addresses
)

// coilOn is the FC 0x05 value for ON. OFF is 0x0000.
const coilOn uint16 = 0xFF00

// String returns a human-readable name for the function code.
func (fc FunctionCode) String() string {
	if fc.IsException() {
		return fc.Clear().String() + "_Exception"
	}
	switch fc {
	case FcReadCoils:
		return "Read_Coils"
	case FcReadDiscreteInputs:
		return "Read_Discrete_Inputs"
	case FcReadHoldingRegisters:
		return "Read_Holding_Registers"
	case FcReadInputRegisters:
		return "Read_Input_Registers"
	case FcWriteSingleCoil:
		return "Write_Single_Coil"
	case FcWriteSingleRegister:
		return "Write_Single_Register"
	case FcWriteMultipleCoils:
		return "Write_Multiple_Coils"
	case FcWriteMultipleRegisters:
		return "Write_Multiple_Registers"
	case FcMaskWriteRegister:
		return "Mask_Write_Register"
	case FcReadWriteMultipleRegisters:
		return "Read_Write_Multiple_Registers"
	default:
		return "Unknown"
	}
}

// IsException reports whether the exception bit is set.
func (fc FunctionCode) IsException() bool {
	return fc&exceptionBit != 0
}

// Clear returns fc with the exception bit cleared.
func (fc FunctionCode) Clear() FunctionCode {
	return fc &^ exceptionBit
}

// IsRead returns true for function codes whose response carries data.
func (fc FunctionCode) IsRead() bool {
	switch fc {
	case FcReadCoils, FcReadDiscreteInputs, FcReadHoldingRegisters,
		FcReadInputRegisters, FcReadWriteMultipleRegisters:
		return true
	default:
		return false
	}
}

// IsWrite returns true for write function codes.
func (fc FunctionCode) IsWrite() bool {
	switch fc {
	case FcWriteSingleCoil, FcWriteSingleRegister,
		FcWriteMultipleCoils, FcWriteMultipleRegisters,
		FcMaskWriteRegister, FcReadWriteMultipleRegisters:
		return true
	default:
		return false
	}
}

// IsKnownFunction returns true for supported Modbus function codes.
func IsKnownFunction(fc FunctionCode) bool {
	return fc.Clear().String() != "Unknown"
}
