// Package mpu fits process memory into the small number of coarse,
// alignment-constrained protection regions offered by a memory protection
// unit.
//
// The hardware alignment rule is a parameter (see Alignment): PowerOfTwo
// models the ARMv7-M MPU, where a region's size is a power of two and its
// base is aligned to that size; Granular models the ARMv8-M MPU and the
// RISC-V PMP in top-of-range mode, where base and size are multiples of a
// fixed granule.
//
// A Fitter always prefers the largest region the rule can express inside the
// available budget. Process memory grows from both ends, and a larger region
// postpones the point where the layout can no longer be covered.
package mpu
