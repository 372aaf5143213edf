// Package ui holds the terminal building blocks shared by the bell, the
// dashboard and the CLI: the color palette, status symbols, sparklines,
// usage bars and plain tables.
//
// Renderers here return uncolored text where the caller decides the color
// (bars and sparklines follow the threshold level of a metric), and use
// Lip Gloss styles where the color is fixed (table headers).
package ui
