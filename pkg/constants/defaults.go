// Package constants defines cross-cutting defaults and wire enums, following
// spec §6 (External Interfaces) and §3 (Data Model).
package constants

import "time"

// Identity and drop ID sizes (§3).
const (
	NodeIDSize = 32   // SHA-256 digest of the node's public signing key
	DropIDSize = 64   // primary owner node ID (32) || random bytes (32)
	KeyBits    = 4096 // RSA signing key size
)

// Tunables (§6).
const (
	DefaultChunkSize                 = 1 << 23 // 8 MiB
	DefaultMaxConcurrentFileFetches  = 4
	DefaultMaxConcurrentChunkFetches = 8
	DefaultMaxChunksPerPeer          = 8
	DefaultTrackerDropTTL            = 300 * time.Second
)

// On-disk layout (§3).
const (
	MetadataDirName  = ".5yncr"
	DropSubdir       = "drop"
	FilesSubdir      = "files"
	LatestSuffix     = "LATEST"
	IncompleteSuffix = ".part"
)

// Node init directory and config file names (§6).
const (
	DefaultInitDirName  = ".5yncr"
	PeerStoreConfigFile = "peer_store.json"
	KeyStoreConfigFile  = "key_store.json"
	PrivateKeyFile      = "private_key.json"
	DropRegistryDBFile  = "drops.db"
)

// Protocol version and request kinds (§6).
const (
	ProtocolVersion = 1

	RequestDropMetadata    = 1
	RequestFileMetadata    = 2
	RequestChunkList       = 3
	RequestChunk           = 4
	RequestNewDropMetadata = 5
)

// Tracker request/response enums (§6).
const (
	TrackerGetKey   = 0
	TrackerPostKey  = 1
	TrackerGetPeers = 2
	TrackerPostPeer = 3

	TrackerResultOK    = "OK"
	TrackerResultError = "ERROR"
)

// DefaultIgnore are patterns always excluded from a drop's file walk, in
// addition to any caller-supplied ignore globs (§4.3).
var DefaultIgnore = []string{MetadataDirName, MetadataDirName + "/*"}
