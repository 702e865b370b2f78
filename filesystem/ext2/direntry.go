package ext2

import "encoding/binary"

// File types stored in a directory entry's file_type byte.
const (
	FTUnknown uint8 = 0
	FTRegular uint8 = 1
	FTDir     uint8 = 2
	FTChar    uint8 = 3
	FTBlock   uint8 = 4
	FTFifo    uint8 = 5
	FTSocket  uint8 = 6
	FTSymlink uint8 = 7
)

// dirEntryHeaderSize is the fixed portion of a directory entry, before the
// variable-length name.
const dirEntryHeaderSize = 8

// dirEntry is a single decoded directory entry, together with its byte
// offset within the containing block (needed to splice entries in place).
type dirEntry struct {
	offset   int
	inode    uint32
	recLen   uint16
	nameLen  uint8
	fileType uint8
	name     string
}

// round4 rounds n up to the next multiple of 4.
func round4(n int) int {
	return (n + 3) &^ 3
}

// actualLen is the minimum rec_len an entry with this name could use.
func actualLen(nameLen int) uint16 {
	return uint16(dirEntryHeaderSize + round4(nameLen))
}

// parseDirBlock walks one directory block's worth of entries. A zero
// rec_len terminates the walk: it can only appear on a corrupt image, and
// stopping there is what keeps the scan from looping forever.
func parseDirBlock(block []byte) []dirEntry {
	var entries []dirEntry
	pos := 0
	for pos < len(block) {
		if pos+dirEntryHeaderSize > len(block) {
			break
		}
		recLen := binary.LittleEndian.Uint16(block[pos+4 : pos+6])
		if recLen == 0 {
			break
		}
		nameLen := block[pos+6]
		fileType := block[pos+7]
		inodeNum := binary.LittleEndian.Uint32(block[pos : pos+4])
		nameEnd := pos + dirEntryHeaderSize + int(nameLen)
		var name string
		if nameEnd <= len(block) {
			name = string(block[pos+dirEntryHeaderSize : nameEnd])
		}
		entries = append(entries, dirEntry{
			offset:   pos,
			inode:    inodeNum,
			recLen:   recLen,
			nameLen:  nameLen,
			fileType: fileType,
			name:     name,
		})
		pos += int(recLen)
	}
	return entries
}

// writeDirEntry encodes e into block at e.offset, using e.recLen as the
// slot size (callers are responsible for not overflowing the block).
func writeDirEntry(block []byte, e dirEntry) {
	binary.LittleEndian.PutUint32(block[e.offset:e.offset+4], e.inode)
	binary.LittleEndian.PutUint16(block[e.offset+4:e.offset+6], e.recLen)
	block[e.offset+6] = e.nameLen
	block[e.offset+7] = e.fileType
	copy(block[e.offset+dirEntryHeaderSize:e.offset+dirEntryHeaderSize+len(e.name)], e.name)
}
