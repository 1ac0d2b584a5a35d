/*
Package types provides the core interfaces, data structures, and type definitions for ShrinkFS.

This package is the contract layer between the compression lifecycle
components. It defines the shared data model and the narrow interfaces
each component implements or consumes.

# Architecture Overview

ShrinkFS follows a layered design; the ledger is the only shared mutable
state and every component reaches it through the Ledger interface:

	┌─────────────────────────────────────────────┐
	│               Facade / API                  │
	│          (pkg/shrinkfs, pkg/api)            │
	└─────────────────────────────────────────────┘
	          │            │            │
	┌─────────┴───┐ ┌──────┴─────┐ ┌────┴───────┐
	│ DiskMonitor │ │  Scanner   │ │   Engine   │
	│ (internal/  │ │ (internal/ │ │ (internal/ │
	│  monitor)   │ │  scanner)  │ │  engine)   │
	└─────────────┘ └────────────┘ └────────────┘
	          │            │            │
	┌─────────┴────────────┴────────────┴────────┐
	│              MetadataLedger                │
	│             (internal/ledger)              │
	└─────────────────────────────────────────────┘

# Core Interfaces

Ledger:
The persistent mapping from original file path to CompressionEntry. An
entry exists exactly when the system considers that file compressed.
Every mutation follows a load, modify, rewrite-whole-document cycle.

Scanner:
Walks a directory tree, filters to eligible files, and ranks them by a
batch-local priority score favoring old, large files.

Engine:
Compresses and decompresses a single file with integrity verification,
backup, and rollback. Files are processed one at a time; a per-file
operation is an uninterruptible unit.

# Data Structures

FileRecord is scan-time and ephemeral. CompressionEntry is the persisted
ledger record, including the content hash and original timestamps needed
to verify and restore a file faithfully. LedgerStats, DiskUsage,
BatchResult, ScanStatistics, and RestorePreview are read-only reporting
shapes consumed by the facade and the HTTP API.

# Thread Safety

Implementations of Ledger must serialize mutations internally; Scanner
and Engine are safe for use from the monitor goroutine and foreground
callers concurrently because all shared state lives behind the Ledger.
*/
package types
