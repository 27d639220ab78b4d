package dyma

const (
	// rowSize is the granularity every block size is a multiple of, and the
	// size of a header, a footer, and a free-list link pointer.
	rowSize = 8

	// minBlockSize is the smallest legal block size: one row for the header,
	// one for the footer, and two for the free-list link pointers.
	minBlockSize = 32

	// pageSize is the fixed size of a page handed out by a PageSource.
	pageSize = 4096

	// numFreeLists is the number of segregated size-class free lists.
	numFreeLists = 10

	// numQuickLists is the number of exact-size quick-list stacks.
	numQuickLists = 20

	// quickListCap is the maximum depth of any single quick list before it
	// is flushed into the free lists.
	quickListCap = 5
)

// Header flag bits, packed into the low three bits of a block's size-typed
// header word (every real size is already a multiple of rowSize, so those
// bits are otherwise unused).
const (
	flagThisAllocated uint64 = 0x1
	flagPrevAllocated uint64 = 0x2
	flagInQuickList   uint64 = 0x4
	flagMask          uint64 = 0x7
)

func sizeOf(header uint64) uint64 { return header &^ flagMask }

func isAllocated(header uint64) bool { return header&flagThisAllocated != 0 }

func isPrevAllocated(header uint64) bool { return header&flagPrevAllocated != 0 }

func isQuickListed(header uint64) bool { return header&flagInQuickList != 0 }
