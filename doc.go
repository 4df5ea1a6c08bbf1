// Package dafr contains the core types of dafr, an engine for interactive,
// lazy wrangling of tabular data. This root package defines the value types
// shared by every subsystem - data types and schemas - while leaf packages
// implement sources, operations, planning, execution and persistence.
package dafr
