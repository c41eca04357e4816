// Package memory manages the RAM block of a single process.
//
// A block is split by two moving breaks:
//
//	ram_start <= app_break <= kernel_break <= ram_end
//
// Memory below the app break belongs to the process (data, heap, stack).
// Memory above the kernel break belongs to the kernel (grant pointers,
// grants, upcall queue). The app break grows upward and the kernel break
// grows downward; every move re-derives the process's app-memory region.
// A move the protection unit cannot express is rolled back.
package memory
