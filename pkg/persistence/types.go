package persistence

import "sort"

// SigningRecord is the audit entry written for every signature the remote key produced.
// The payload itself is never stored, only its digest.
type SigningRecord struct {
	// Id uniquely identifies the record (uuid).
	Id string `json:"id"`

	// KeyId is the remote key that produced the signature.
	KeyId string `json:"keyId"`

	// Digest is the 0x-prefixed hex of the 32 byte digest that was signed.
	Digest string `json:"digest"`

	HashFunction     string `json:"hashFunction"`
	MessageType      string `json:"messageType"`
	SigningAlgorithm string `json:"signingAlgorithm"`

	// Signature is the 0x-prefixed hex of the raw signature returned by the remote service.
	Signature string `json:"signature"`

	// CreatedAt is the Unix timestamp in milliseconds when the signature was returned.
	CreatedAt int64 `json:"createdAt"`
}

// MonitorState is the chain head monitor checkpoint.
type MonitorState struct {
	ChainId         uint64 `json:"chainId"`
	LastBlockNumber uint64 `json:"lastBlockNumber"`
	LastBlockHash   string `json:"lastBlockHash"`

	// UpdatedAt is the Unix timestamp in seconds of the last update.
	UpdatedAt int64 `json:"updatedAt"`
}

// SortSigningRecords orders records by CreatedAt, breaking ties by Id.
func SortSigningRecords(records []*SigningRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt == records[j].CreatedAt {
			return records[i].Id < records[j].Id
		}
		return records[i].CreatedAt < records[j].CreatedAt
	})
}
