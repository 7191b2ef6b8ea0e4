package vpk

// Format constants and signature related declarations.

const (
	// Signature is the magic value at offset 0 of every directory file.
	Signature uint32 = 0x55AA1234

	Version1 uint32 = 1
	Version2 uint32 = 2

	// DirIndex is the archive index meaning "chunk data follows the tree in the _dir file".
	DirIndex uint16 = 0x7FFF
	// MaxPartIndex is the highest numbered part an entry may reference.
	MaxPartIndex uint16 = 0x7FFE

	entryTerminator uint16 = 0xFFFF

	headerSizeV1 = 12
	headerSizeV2 = 28

	// entryRecordSize covers crc, preload length, index, offset, length and terminator.
	entryRecordSize = 4 + 2 + 2 + 4 + 4 + 2

	// md5BlockSize is the span covered by one archive MD5 section entry when writing.
	md5BlockSize = 1 << 20

	archiveMD5EntrySize = 4 + 4 + 4 + 16
	otherMD5SectionSize = 3 * 16
)

// headerSize returns the on-disk header length for a format version.
func headerSize(version uint32) int {
	if version == Version2 {
		return headerSizeV2
	}
	return headerSizeV1
}
