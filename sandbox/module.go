package sandbox

// guestModule returns the binary of a module that defines one memory with
// the given page limits and exports it as "memory".
func guestModule(minPages, maxPages uint32) []byte {
	var wasm []byte

	// Magic and version
	wasm = append(wasm, 0x00, 0x61, 0x73, 0x6d)
	wasm = append(wasm, 0x01, 0x00, 0x00, 0x00)

	// Memory section: one memory with min and max
	var memorySection []byte
	memorySection = append(memorySection, 0x01)
	memorySection = append(memorySection, 0x01)
	memorySection = append(memorySection, encodeULEB128(minPages)...)
	memorySection = append(memorySection, encodeULEB128(maxPages)...)
	wasm = append(wasm, 0x05)
	wasm = append(wasm, encodeULEB128(uint32(len(memorySection)))...)
	wasm = append(wasm, memorySection...)

	// Export section: memory 0
	var exportSection []byte
	exportSection = append(exportSection, 0x01)
	exportSection = append(exportSection, encodeULEB128(uint32(len(memoryExport)))...)
	exportSection = append(exportSection, memoryExport...)
	exportSection = append(exportSection, 0x02)
	exportSection = append(exportSection, 0x00)
	wasm = append(wasm, 0x07)
	wasm = append(wasm, encodeULEB128(uint32(len(exportSection)))...)
	wasm = append(wasm, exportSection...)

	return wasm
}

const memoryExport = "memory"

// encodeULEB128 encodes an unsigned value in LEB128 format.
func encodeULEB128(v uint32) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		result = append(result, b)
		if v == 0 {
			break
		}
	}
	return result
}
