// Package firmware decodes firmware image files — Intel HEX, Motorola
// S-record, and the DFU/DfuSe binary container — into the memory package's
// segment model.
package firmware
