package port

import "errors"

// Sentinel errors used across ports.
var (
	// ErrRepoUnavailable means both the primary and secondary branch
	// attempts against the source hosting API failed.
	ErrRepoUnavailable = errors.New("repository unavailable on both main and master branches")

	// ErrCredentialsMissing means no LLM API key was supplied where one is required.
	ErrCredentialsMissing = errors.New("LLM API key missing")

	// ErrIndexInProgress means an index or re-index run for the project is already running.
	ErrIndexInProgress = errors.New("index already in progress for project")

	// ErrNoEmbeddings means an ingestion run produced zero persisted records.
	ErrNoEmbeddings = errors.New("no embeddings were produced")

	ErrProjectNotFound = errors.New("project not found")
)
