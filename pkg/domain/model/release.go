package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ReleaseIdentity is the registry-facing identity of a release.
// UploadName always contains exactly one slash; ProjectName may be a
// flattened join of subgroup path segments.
type ReleaseIdentity struct {
	UploadName   string // {owner}/{project}
	ProjectOwner string
	ProjectName  string
}

// ReleaseMetadata is the payload sent to the registry during the stage
// phase. Built once per invocation and serialized verbatim.
type ReleaseMetadata struct {
	CommitCount        uint64          `json:"commit_count"`
	Description        *string         `json:"description"`
	Outputs            json.RawMessage `json:"outputs"`
	RawFlakeMetadata   json.RawMessage `json:"raw_flake_metadata"`
	Readme             *string         `json:"readme"`
	Repo               string          `json:"repo"`
	Revision           string          `json:"revision"`
	Visibility         Visibility      `json:"visibility"`
	Mirrored           bool            `json:"mirrored"`
	SourceSubdirectory *string         `json:"source_subdirectory"`
	SPDXIdentifier     *string         `json:"spdx_identifier"`
	Labels             []string        `json:"labels"`
}

// Tarball is the compressed source artifact produced by the flake
// evaluator. HashBase64 is the standard-base64 SHA-256 of Bytes and must
// match both the stage request URL and the transfer integrity header.
type Tarball struct {
	Bytes      []byte
	HashBase64 string
}

// StageResult is the registry's response to a successful stage request.
type StageResult struct {
	UploadURL string    `json:"s3_upload_url"`
	ReleaseID uuid.UUID `json:"uuid"`
}

// FlakeArtifact is what the external evaluation collaborator hands back:
// the raw flake metadata and output graph as opaque JSON, the packaged
// tarball, and the on-disk source tree the tarball was built from.
type FlakeArtifact struct {
	RawMetadata json.RawMessage
	Outputs     json.RawMessage
	Tarball     *Tarball
	SourceDir   string
}
