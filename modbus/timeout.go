// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package modbus

// CalculateRTUTimeout returns the number of nanoseconds a bus must stay
// silent between one request commit and the next, per spec:
//
//	ns_per_bit  = 10^6 / baudrate                 (integer division)
//	ns_per_byte = bits_per_char * ns_per_bit
//	transmission = ns_per_byte * bytes_in_frame
//	silence      = ns_per_byte * 35 / 10           (3.5-character gap)
//	total        = transmission + machine_delay + silence
//
// Baudrates above 1MHz collapse ns_per_bit to zero and are treated as a
// configuration error by the caller (Open Question (a)); this function
// does not itself validate the baudrate.
func CalculateRTUTimeout(bitsPerChar int64, machineDelayNs int64, baudrate int64, bytesInFrame int64) int64 {
	nsPerBit := int64(1_000_000) / baudrate
	nsPerByte := bitsPerChar * nsPerBit
	transmission := nsPerByte * bytesInFrame
	silence := nsPerByte * 35 / 10
	return transmission + machineDelayNs + silence
}
