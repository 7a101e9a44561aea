// Package errors provides the structured error taxonomy shared across
// codelens: a small, closed set of error kinds, each carrying a code,
// human message, and retryable flag, so the ToolSurface can turn any
// failure into a structured result without losing what kind of problem it was.
package errors

// Kind identifies one of the seven taxonomy members. Unlike the teacher's
// open-ended numeric code space, this set is closed: every CodelensError
// carries exactly one of these.
type Kind string

const (
	// KindNotInitialized means the project's state directory is missing.
	KindNotInitialized Kind = "NotInitialized"
	// KindConfigInvalid means config.json/config.yaml was unparseable or
	// failed validation.
	KindConfigInvalid Kind = "ConfigInvalid"
	// KindEmbedderUnavailable means the configured embedding provider is
	// not implemented, or is unreachable (missing credentials, network error).
	KindEmbedderUnavailable Kind = "EmbedderUnavailable"
	// KindStoreError means a ChunkStore or EmbedCache I/O failure.
	KindStoreError Kind = "StoreError"
	// KindQueryInvalid means an empty query or an unknown search mode.
	KindQueryInvalid Kind = "QueryInvalid"
	// KindNoIndex means the ChunkStore is empty.
	KindNoIndex Kind = "NoIndex"
	// KindScanError means the scan root does not exist or is unreadable.
	KindScanError Kind = "ScanError"
)

// retryableKinds are kinds whose cause may clear on its own (network blips,
// a provider that comes back up) and are worth a caller-side retry.
var retryableKinds = map[Kind]bool{
	KindEmbedderUnavailable: true,
	KindStoreError:          true,
}

func isRetryableKind(k Kind) bool {
	return retryableKinds[k]
}
